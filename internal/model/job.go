package model

import "errors"

// ErrNoFilesTable marks a job page without a files table.
var ErrNoFilesTable = errors.New("no files table on job page")

// JobPage is what the crawl needs from one job detail page.
type JobPage struct {
	URL   string
	Title string
	Rows  []FileRow
}

// FileRow is one row of a job page's files table.
type FileRow struct {
	Cells int

	// Description is the first cell carrying a #<id> token, or empty.
	Description string

	HasDownloadLink bool
	// DownloadURL is absolute; empty when the link had no href.
	DownloadURL string
}
