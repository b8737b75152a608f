package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrNotesFormNotFound = errors.New("job notes field not found")
	ErrNotesNotSaved     = errors.New("could not save job notes")
)

var remnantIDLineRegex = regexp.MustCompile(`^\s*ID\s*#\d+\s*$`)

// MergeRemnantIDNotes replaces the "ID #<n>" lines of a job's notes with one
// line per remnant id, keeping every other line. It reports whether the
// notes changed.
func MergeRemnantIDNotes(current string, ids []int) (string, bool) {
	if len(ids) == 0 {
		return current, false
	}

	seen := map[int]bool{}
	var idLines []string
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		idLines = append(idLines, fmt.Sprintf("ID #%d", id))
	}

	var kept []string
	if current != "" {
		for _, line := range strings.Split(strings.ReplaceAll(current, "\r\n", "\n"), "\n") {
			if remnantIDLineRegex.MatchString(line) {
				continue
			}
			kept = append(kept, line)
		}
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}

	var merged string
	if len(kept) > 0 {
		merged = strings.Join(append(append(kept, ""), idLines...), "\n")
	} else {
		merged = strings.Join(idLines, "\n")
	}
	return merged, merged != current
}

type notesForm struct {
	jobURL  string
	pageURL *url.URL
	form    *goquery.Selection
	field   string
}

type saveStrategy struct {
	name string
	save func(ctx context.Context, c *Client, f notesForm, notes string) error
}

// Strategies are tried in order; the first one that succeeds wins.
var saveStrategies = []saveStrategy{
	{name: "submit edit form", save: submitNotesForm},
	{name: "post to job page", save: postNotesToJob},
}

func submitNotesForm(ctx context.Context, c *Client, f notesForm, notes string) error {
	if f.form.Length() == 0 {
		return errors.New("notes field has no enclosing form")
	}
	fields := formFields(f.form, "")
	fields[f.field] = notes
	return c.postForm(ctx, formAction(f.form, f.pageURL), fields)
}

func postNotesToJob(ctx context.Context, c *Client, f notesForm, notes string) error {
	return c.postForm(ctx, f.jobURL, map[string]string{f.field: notes})
}

func (c *Client) postForm(ctx context.Context, target string, fields map[string]string) error {
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(target)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("status %d from %s", res.StatusCode(), target)
	}
	return nil
}

// UpdateJobNotes writes one "ID #<n>" line per remnant into the job notes.
// It returns false without error when the notes were already current.
func (c *Client) UpdateJobNotes(ctx context.Context, jobURL string, ids []int) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}

	doc, pageURL, err := c.getDocument(ctx, jobURL)
	if err != nil {
		return false, err
	}
	field := doc.Find("textarea[name=jobDesc], input[name=jobDesc]").First()
	if field.Length() == 0 {
		return false, ErrNotesFormNotFound
	}

	current := field.Text()
	if goquery.NodeName(field) == "input" {
		current = field.AttrOr("value", "")
	}
	notes, changed := MergeRemnantIDNotes(current, ids)
	if !changed {
		slog.InfoContext(ctx, "job notes already contain current remnant ids", "job_url", jobURL)
		return false, nil
	}

	f := notesForm{
		jobURL:  jobURL,
		pageURL: pageURL,
		form:    field.Closest("form"),
		field:   "jobDesc",
	}
	var errs []error
	for _, strategy := range saveStrategies {
		err := strategy.save(ctx, c, f, notes)
		if err == nil {
			slog.InfoContext(ctx, "updated job notes with remnant ids", "job_url", jobURL, "ids", ids, "strategy", strategy.name)
			return true, nil
		}
		slog.DebugContext(ctx, "job notes save strategy failed", "strategy", strategy.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", strategy.name, err))
	}
	return false, fmt.Errorf("%w: %w", ErrNotesNotSaved, errors.Join(errs...))
}
