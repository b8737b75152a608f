package model

import (
	"sort"
	"time"
)

// Summary holds the counters of one sync run.
type Summary struct {
	RowsSeen              int `json:"rows_seen"`
	RowsWithID            int `json:"rows_with_id"`
	Changed               int `json:"changed"`
	NoChange              int `json:"no_change"`
	PhotosDownloaded      int `json:"photos_downloaded"`
	PhotosSkippedSameHash int `json:"photos_skipped_same_hash"`
	PhotosUploaded        int `json:"photos_uploaded"`
	JobsProcessed         int `json:"jobs_processed"`
	Errors                int `json:"errors"`
}

// Report is the per-run artifact written for post-run inspection.
type Report struct {
	RunID                      string    `json:"run_id"`
	RunStartedAt               time.Time `json:"run_started_at"`
	FinishedAt                 time.Time `json:"finished_at"`
	CrawlCompletedSuccessfully bool      `json:"crawl_completed_successfully"`
	Reconciled                 bool      `json:"reconciled"`
	FatalError                 string    `json:"fatal_error,omitempty"`
	TotalErrors                int       `json:"total_errors"`
	IssueCount                 int       `json:"issue_count"`
	Summary                    Summary   `json:"summary"`
	Issues                     []Issue   `json:"issues"`
}

type KindCount struct {
	Kind  IssueKind
	Count int
}

// IssueCounts tallies issues by kind, most frequent first.
func IssueCounts(issues []Issue) []KindCount {
	counts := map[IssueKind]int{}
	for _, issue := range issues {
		counts[issue.Kind]++
	}
	out := make([]KindCount, 0, len(counts))
	for kind, n := range counts {
		out = append(out, KindCount{Kind: kind, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
