package syncer

import (
	"time"

	"github.com/google/uuid"

	"remnantsync/internal/model"
	"remnantsync/internal/observability"
)

// Run is the state of one crawl. It is owned by the crawl loop and is the
// only state carried across job pages.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	Seen      map[int]struct{}
	Issues    []model.Issue
	Summary   model.Summary

	// Completed is set only once every job page has been walked without a
	// fatal error.
	Completed bool
	Fatal     error
}

func NewRun(startedAt time.Time) *Run {
	return &Run{
		ID:        uuid.New(),
		StartedAt: startedAt.UTC().Truncate(time.Microsecond),
		Seen:      map[int]struct{}{},
	}
}

func (r *Run) RecordIssue(kind model.IssueKind, jobURL string, remnantID *int, details string) {
	r.Issues = append(r.Issues, model.Issue{
		Kind:      kind,
		JobURL:    jobURL,
		RemnantID: remnantID,
		Details:   details,
	})
	observability.IssuesTotal.WithLabelValues(string(kind)).Inc()
}

func (r *Run) MarkSeen(id int) {
	r.Seen[id] = struct{}{}
}

func (r *Run) Report(finishedAt time.Time) model.Report {
	rep := model.Report{
		RunID:                      r.ID.String(),
		RunStartedAt:               r.StartedAt,
		FinishedAt:                 finishedAt.UTC(),
		CrawlCompletedSuccessfully: r.Completed,
		TotalErrors:                r.Summary.Errors,
		IssueCount:                 len(r.Issues),
		Summary:                    r.Summary,
		Issues:                     r.Issues,
	}
	if rep.Issues == nil {
		rep.Issues = []model.Issue{}
	}
	if r.Fatal != nil {
		rep.FatalError = r.Fatal.Error()
	}
	return rep
}
