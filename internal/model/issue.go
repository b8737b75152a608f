package model

type IssueKind string

const (
	IssueMissingFilesTable    IssueKind = "missing_files_table"
	IssueParseSizeFailed      IssueKind = "parse_size_failed"
	IssueMissingDownloadLink  IssueKind = "missing_download_link"
	IssueEmptyDownloadHref    IssueKind = "empty_download_href"
	IssueRowException         IssueKind = "row_exception"
	IssueJobNotesUpdateFailed IssueKind = "job_notes_update_failed"
)

// Issue is a non-fatal diagnostic recorded during a crawl.
type Issue struct {
	Kind      IssueKind `json:"kind"`
	JobURL    string    `json:"job_url,omitempty"`
	RemnantID *int      `json:"remnant_id"`
	Details   string    `json:"details"`
}
