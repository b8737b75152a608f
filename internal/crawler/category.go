package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"remnantsync/internal/clock"
	"remnantsync/internal/model"
)

// JobURLs walks the paginated job list and returns every job detail url in
// list order, without duplicates. A page that cannot be fetched fails the
// whole walk; stopping early would make unvisited jobs look deleted.
func (c *Client) JobURLs(ctx context.Context) ([]string, error) {
	started := time.Now()

	var urls []string
	seen := map[string]bool{}
	visited := map[string]bool{}

	nextURL := c.ListURL.String()
	for pageNum := 1; nextURL != ""; pageNum++ {
		if visited[nextURL] {
			slog.WarnContext(ctx, "job list pagination looped, stopping", "url", nextURL)
			break
		}
		visited[nextURL] = true

		doc, pageURL, err := c.getDocument(ctx, nextURL)
		if err != nil {
			return nil, fmt.Errorf("job list page %d: %w", pageNum, err)
		}
		if doc.Find("#Jobs_1Body").Length() == 0 {
			return nil, fmt.Errorf("job list page %d: jobs table not found at %s", pageNum, pageURL)
		}

		links, next, err := parseJobList(doc, pageURL)
		if err != nil {
			return nil, fmt.Errorf("job list page %d: %w", pageNum, err)
		}
		added := 0
		for _, link := range links {
			if seen[link] {
				continue
			}
			seen[link] = true
			urls = append(urls, link)
			added++
		}
		slog.InfoContext(ctx, "collected job links", "page", pageNum, "links", len(links), "new", added)

		nextURL = next
		if nextURL != "" {
			if err := clock.Sleep(ctx, c.pageDelay); err != nil {
				return nil, err
			}
		}
	}

	slog.InfoContext(ctx, "collected job pages", "count", len(urls), "seconds", time.Since(started).Seconds())
	return urls, nil
}

// JobPage fetches one job detail page. A page without a files table returns
// ErrNoFilesTable; any other error means the page could not be loaded.
func (c *Client) JobPage(ctx context.Context, jobURL string) (*model.JobPage, error) {
	doc, pageURL, err := c.getDocument(ctx, jobURL)
	if err != nil {
		return nil, err
	}
	page, err := parseJobPage(doc, pageURL, c.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", jobURL, err)
	}
	page.URL = jobURL
	return page, nil
}
