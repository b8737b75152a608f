package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"remnantsync/internal/clock"
	"remnantsync/internal/model"
	"remnantsync/internal/observability"
	"remnantsync/internal/parsing"
	"remnantsync/internal/photo"
)

// PageSource is the logged-in view of the job tracking site.
type PageSource interface {
	Login(ctx context.Context) error
	JobURLs(ctx context.Context) ([]string, error)
	// JobPage returns model.ErrNoFilesTable (wrapped) for pages without a
	// files table; any other error is fatal to the crawl.
	JobPage(ctx context.Context, jobURL string) (*model.JobPage, error)
	Download(ctx context.Context, fileURL string) ([]byte, string, error)
	UpdateJobNotes(ctx context.Context, jobURL string, ids []int) (bool, error)
}

// RemnantStore is the backend that owns remnant rows and decides whether a
// record changed.
type RemnantStore interface {
	Sync(ctx context.Context, rem model.Remnant) (model.SyncOutcome, error)
	MarkSeen(ctx context.Context, id int, seenAt time.Time) error
	PhotoHash(ctx context.Context, id int) (string, error)
	UpdatePhoto(ctx context.Context, id int, p model.Photo) error
	Reconcile(ctx context.Context, runStartedAt time.Time) error
}

type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	PublicURL(path string) string
}

type RunRecorder interface {
	SaveRun(ctx context.Context, rep model.Report) error
}

type Syncer struct {
	Pages   PageSource
	Store   RemnantStore
	Objects ObjectStore
	// Runs is optional.
	Runs RunRecorder

	ReportPath     string
	PageDelay      time.Duration
	UpdateJobNotes bool

	Now func() time.Time
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run performs one full sync. Deletion reconciliation runs only when the
// crawl visited every job page; a partial crawl must never deactivate
// remnants it simply did not reach. The returned error is the fatal crawl
// error or a reconcile failure.
func (s *Syncer) Run(ctx context.Context) (model.Report, error) {
	run := NewRun(s.now())
	slog.InfoContext(ctx, "starting moraware sync", "run_id", run.ID.String(), "started_at", run.StartedAt)

	err := s.crawl(ctx, run)
	if err != nil {
		run.Summary.Errors++
		run.Fatal = err
		slog.ErrorContext(ctx, "fatal sync failure; skipping deletion reconciliation", "err", err)
	} else {
		run.Completed = true
		logSummary(ctx, run)
	}

	reconciled := false
	if run.Completed {
		if rerr := s.Store.Reconcile(ctx, run.StartedAt); rerr != nil {
			err = fmt.Errorf("reconcile deletions: %w", rerr)
			slog.ErrorContext(ctx, "reconcile_deletions failed", "err", rerr)
		} else {
			reconciled = true
			slog.InfoContext(ctx, "reconciled deletions", "run_started_at", run.StartedAt, "seen", len(run.Seen))
		}
	} else {
		slog.WarnContext(ctx, "skipped reconcile_deletions because crawl did not complete successfully")
	}

	rep := run.Report(s.now())
	rep.Reconciled = reconciled
	s.persist(ctx, rep)

	switch {
	case !run.Completed:
		observability.RunsTotal.WithLabelValues("incomplete").Inc()
	case !reconciled:
		observability.RunsTotal.WithLabelValues("reconcile_failed").Inc()
	default:
		observability.RunsTotal.WithLabelValues("completed").Inc()
	}
	return rep, err
}

func (s *Syncer) persist(ctx context.Context, rep model.Report) {
	if s.ReportPath != "" {
		if err := WriteReport(s.ReportPath, rep); err != nil {
			slog.WarnContext(ctx, "could not write issue report", "path", s.ReportPath, "err", err)
		} else {
			slog.InfoContext(ctx, "wrote issue report", "path", s.ReportPath)
		}
	}
	if s.Runs != nil {
		// The run is recorded even when ctx was cancelled mid-crawl.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.Runs.SaveRun(saveCtx, rep); err != nil {
			slog.WarnContext(ctx, "could not record sync run", "run_id", rep.RunID, "err", err)
		}
	}
}

func (s *Syncer) crawl(ctx context.Context, run *Run) error {
	if err := s.Pages.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	jobURLs, err := s.Pages.JobURLs(ctx)
	if err != nil {
		return fmt.Errorf("collect job urls: %w", err)
	}

	for i, jobURL := range jobURLs {
		if i > 0 {
			if err := clock.Sleep(ctx, s.PageDelay); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		slog.InfoContext(ctx, "processing job page", "n", i+1, "of", len(jobURLs), "url", jobURL)

		if err := s.processJob(ctx, run, jobURL); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) processJob(ctx context.Context, run *Run, jobURL string) error {
	page, err := s.Pages.JobPage(ctx, jobURL)
	if errors.Is(err, model.ErrNoFilesTable) {
		slog.WarnContext(ctx, "no files table found, skipping job page", "url", jobURL)
		run.RecordIssue(model.IssueMissingFilesTable, jobURL, nil, "")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job page %s: %w", jobURL, err)
	}
	run.Summary.JobsProcessed++

	material, name := parsing.ExtractMaterialAndName(page.Title)
	material = parsing.DefaultUnknown(material)
	name = parsing.DefaultUnknown(name)

	slog.InfoContext(ctx, "found file rows on page", "rows", len(page.Rows), "material", material, "name", name)

	var ids []int
	for idx, row := range page.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processRowSafely(ctx, run, jobURL, idx, row, material, name, &ids)
	}

	if s.UpdateJobNotes && len(ids) > 0 {
		if _, err := s.Pages.UpdateJobNotes(ctx, jobURL, ids); err != nil {
			slog.WarnContext(ctx, "could not update job notes with remnant ids", "url", jobURL, "err", err)
			run.RecordIssue(model.IssueJobNotesUpdateFailed, jobURL, nil, err.Error())
		}
	}
	return nil
}

// processRowSafely is the row boundary: nothing that goes wrong inside one
// row stops the crawl.
func (s *Syncer) processRowSafely(ctx context.Context, run *Run, jobURL string, idx int, row model.FileRow, material, name string, ids *[]int) {
	found := len(*ids)
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = s.processRow(ctx, run, jobURL, row, material, name, ids)
	}()
	if err == nil {
		return
	}

	var remnantID *int
	if len(*ids) > found && (*ids)[len(*ids)-1] > 0 {
		id := (*ids)[len(*ids)-1]
		remnantID = &id
	}
	run.Summary.Errors++
	slog.ErrorContext(ctx, "error processing row on job page", "row", idx, "url", jobURL, "err", err)
	run.RecordIssue(model.IssueRowException, jobURL, remnantID, fmt.Sprintf("row=%d error=%v", idx, err))
}

func (s *Syncer) processRow(ctx context.Context, run *Run, jobURL string, row model.FileRow, material, name string, ids *[]int) (err error) {
	run.Summary.RowsSeen++
	if row.Cells < 2 || row.Description == "" {
		observability.RowsTotal.WithLabelValues("false").Inc()
		return nil
	}
	id, ok := parsing.FindRemnantID(row.Description)
	if !ok {
		observability.RowsTotal.WithLabelValues("false").Inc()
		return nil
	}
	observability.RowsTotal.WithLabelValues("true").Inc()
	*ids = append(*ids, id)
	run.Summary.RowsWithID++

	rem, err := parsing.ParseDescription(row.Description)
	if errors.Is(err, parsing.ErrNoDimensions) {
		slog.WarnContext(ctx, "could not parse size", "remnant_id", id, "description", row.Description)
		run.RecordIssue(model.IssueParseSizeFailed, jobURL, &id, row.Description)
		return nil
	}
	if err != nil {
		return err
	}
	rem.Material = material
	rem.Name = name

	// Every parsed remnant is marked seen exactly once, whatever happens to
	// its metadata or photo, panics included.
	defer func() {
		run.MarkSeen(rem.ID)
		if serr := s.Store.MarkSeen(ctx, rem.ID, run.StartedAt); serr != nil {
			err = errors.Join(err, fmt.Errorf("mark remnant %d seen: %w", rem.ID, serr))
		}
	}()

	outcome, err := s.syncRecord(ctx, run, jobURL, row, &rem)
	if err != nil {
		return err
	}

	switch outcome {
	case model.SyncChanged:
		run.Summary.Changed++
		observability.SyncOutcomesTotal.WithLabelValues(string(model.SyncChanged)).Inc()
		slog.InfoContext(ctx, "metadata changed (insert/update)", "remnant_id", rem.ID)
	case model.SyncNoChange:
		// Photo-only changes are not detected: the photo is refetched only
		// when the metadata changed.
		run.Summary.NoChange++
		observability.SyncOutcomesTotal.WithLabelValues(string(model.SyncNoChange)).Inc()
		slog.InfoContext(ctx, "no metadata change, skipping photo", "remnant_id", rem.ID)
		return nil
	default:
		return nil
	}

	return s.syncPhoto(ctx, run, rem)
}

// syncRecord resolves the photo link and hands the record to the store. An
// empty outcome means the row was skipped and an issue was recorded.
func (s *Syncer) syncRecord(ctx context.Context, run *Run, jobURL string, row model.FileRow, rem *model.Remnant) (model.SyncOutcome, error) {
	if !row.HasDownloadLink {
		slog.WarnContext(ctx, "no download link found", "remnant_id", rem.ID)
		run.RecordIssue(model.IssueMissingDownloadLink, jobURL, &rem.ID, "")
		return "", nil
	}
	if row.DownloadURL == "" {
		slog.WarnContext(ctx, "download href was empty", "remnant_id", rem.ID)
		run.RecordIssue(model.IssueEmptyDownloadHref, jobURL, &rem.ID, "")
		return "", nil
	}
	rem.SourceImageURL = row.DownloadURL

	slog.InfoContext(ctx, "remnant",
		"id", rem.ID,
		"material", rem.Material,
		"name", rem.Name,
		"size", fmt.Sprintf("%dx%d", rem.Width, rem.Height),
		"l_shape", rem.LShaped,
		"status", rem.Status,
		"thickness", rem.Thickness,
	)

	outcome, err := s.Store.Sync(ctx, *rem)
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Syncer) syncPhoto(ctx context.Context, run *Run, rem model.Remnant) error {
	slog.DebugContext(ctx, "downloading image bytes", "remnant_id", rem.ID)
	data, contentType, err := s.Pages.Download(ctx, rem.SourceImageURL)
	if err != nil {
		return fmt.Errorf("download photo for remnant %d: %w", rem.ID, err)
	}
	run.Summary.PhotosDownloaded++
	observability.PhotosTotal.WithLabelValues("downloaded").Inc()

	hash := photo.Hash(data)
	previous, err := s.Store.PhotoHash(ctx, rem.ID)
	if err != nil {
		return fmt.Errorf("load photo hash for remnant %d: %w", rem.ID, err)
	}
	if !photo.NeedsUpload(hash, previous) {
		run.Summary.PhotosSkippedSameHash++
		observability.PhotosTotal.WithLabelValues("skipped_same_hash").Inc()
		slog.InfoContext(ctx, "photo unchanged, skipping upload", "remnant_id", rem.ID, "photo_hash", hash[:12])
		return nil
	}

	path := photo.ObjectPath(rem.ID, hash, photo.InferExtension(rem.SourceImageURL, contentType))
	slog.InfoContext(ctx, "uploading photo", "remnant_id", rem.ID, "path", path, "content_type", contentType)
	if err := s.Objects.Upload(ctx, path, data, contentType); err != nil {
		return fmt.Errorf("upload photo for remnant %d: %w", rem.ID, err)
	}
	run.Summary.PhotosUploaded++
	observability.PhotosTotal.WithLabelValues("uploaded").Inc()

	err = s.Store.UpdatePhoto(ctx, rem.ID, model.Photo{
		Hash:      hash,
		Path:      path,
		PublicURL: s.Objects.PublicURL(path),
		SyncedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("record photo for remnant %d: %w", rem.ID, err)
	}
	slog.InfoContext(ctx, "photo uploaded and recorded", "remnant_id", rem.ID)
	return nil
}

func logSummary(ctx context.Context, run *Run) {
	s := run.Summary
	slog.InfoContext(ctx, "sync complete",
		"jobs", s.JobsProcessed,
		"rows_seen", s.RowsSeen,
		"rows_with_id", s.RowsWithID,
		"changed", s.Changed,
		"no_change", s.NoChange,
		"photos_downloaded", s.PhotosDownloaded,
		"photos_skipped_same_hash", s.PhotosSkippedSameHash,
		"photos_uploaded", s.PhotosUploaded,
		"errors", s.Errors,
	)
	if len(run.Issues) == 0 {
		slog.InfoContext(ctx, "issue summary: no issues recorded")
		return
	}
	for _, kc := range model.IssueCounts(run.Issues) {
		slog.InfoContext(ctx, "issue summary", "kind", kc.Kind, "count", kc.Count)
	}
}
