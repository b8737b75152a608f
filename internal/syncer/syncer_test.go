package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"remnantsync/internal/model"
	"remnantsync/internal/photo"

	"github.com/stretchr/testify/require"
)

type stubPages struct {
	loginErr   error
	jobURLsErr error
	jobURLs    []string
	pages      map[string]*model.JobPage
	pageErrs   map[string]error
	files      map[string][]byte
	notes      map[string][]int
	notesErr   error
	pagesAsked []string
}

func (p *stubPages) Login(ctx context.Context) error { return p.loginErr }

func (p *stubPages) JobURLs(ctx context.Context) ([]string, error) {
	if p.jobURLsErr != nil {
		return nil, p.jobURLsErr
	}
	return p.jobURLs, nil
}

func (p *stubPages) JobPage(ctx context.Context, jobURL string) (*model.JobPage, error) {
	p.pagesAsked = append(p.pagesAsked, jobURL)
	if err := p.pageErrs[jobURL]; err != nil {
		return nil, err
	}
	page, ok := p.pages[jobURL]
	if !ok {
		return nil, fmt.Errorf("%s: %w", jobURL, model.ErrNoFilesTable)
	}
	return page, nil
}

func (p *stubPages) Download(ctx context.Context, fileURL string) ([]byte, string, error) {
	data, ok := p.files[fileURL]
	if !ok {
		return nil, "", fmt.Errorf("status 404 downloading %s", fileURL)
	}
	return data, "image/png", nil
}

func (p *stubPages) UpdateJobNotes(ctx context.Context, jobURL string, ids []int) (bool, error) {
	if p.notesErr != nil {
		return false, p.notesErr
	}
	if p.notes == nil {
		p.notes = map[string][]int{}
	}
	p.notes[jobURL] = ids
	return true, nil
}

type stubStore struct {
	outcomes     map[int]model.SyncOutcome
	syncErrs     map[int]error
	panicOn      int
	hashes       map[int]string
	synced       []model.Remnant
	seenCalls    map[int]int
	seenAt       []time.Time
	photos       map[int]model.Photo
	reconcileErr error
	reconciled   []time.Time
}

func newStubStore() *stubStore {
	return &stubStore{
		outcomes:  map[int]model.SyncOutcome{},
		syncErrs:  map[int]error{},
		hashes:    map[int]string{},
		seenCalls: map[int]int{},
		photos:    map[int]model.Photo{},
	}
}

func (s *stubStore) Sync(ctx context.Context, rem model.Remnant) (model.SyncOutcome, error) {
	if rem.ID == s.panicOn {
		panic("boom")
	}
	s.synced = append(s.synced, rem)
	if err := s.syncErrs[rem.ID]; err != nil {
		return "", err
	}
	if o, ok := s.outcomes[rem.ID]; ok {
		return o, nil
	}
	return model.SyncNoChange, nil
}

func (s *stubStore) MarkSeen(ctx context.Context, id int, seenAt time.Time) error {
	s.seenCalls[id]++
	s.seenAt = append(s.seenAt, seenAt)
	return nil
}

func (s *stubStore) PhotoHash(ctx context.Context, id int) (string, error) {
	return s.hashes[id], nil
}

func (s *stubStore) UpdatePhoto(ctx context.Context, id int, p model.Photo) error {
	s.photos[id] = p
	s.hashes[id] = p.Hash
	return nil
}

func (s *stubStore) Reconcile(ctx context.Context, runStartedAt time.Time) error {
	s.reconciled = append(s.reconciled, runStartedAt)
	return s.reconcileErr
}

type stubObjects struct {
	uploads map[string][]byte
}

func (o *stubObjects) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if o.uploads == nil {
		o.uploads = map[string][]byte{}
	}
	o.uploads[path] = data
	return nil
}

func (o *stubObjects) PublicURL(path string) string {
	return "https://cdn.local/remnant-images/" + path
}

type stubRecorder struct {
	reports []model.Report
}

func (r *stubRecorder) SaveRun(ctx context.Context, rep model.Report) error {
	r.reports = append(r.reports, rep)
	return nil
}

const (
	job1 = "https://x.moraware.net/sys/job/1"
	job2 = "https://x.moraware.net/sys/job/2"
	job3 = "https://x.moraware.net/sys/job/3"
)

func fixturePages() *stubPages {
	return &stubPages{
		jobURLs: []string{job1, job2},
		pages: map[string]*model.JobPage{
			job1: {
				URL:   job1,
				Title: "Quartz | Cambria Hailey - Job Detail - Moraware Systemize",
				Rows: []model.FileRow{
					{Cells: 0},
					{Cells: 2, Description: "#48 | 42x60 | Sold 3cm", HasDownloadLink: true, DownloadURL: "https://x.moraware.net/files/48.png"},
					{Cells: 2, Description: "#49 | 42x60+18x24 | On Hold", HasDownloadLink: true, DownloadURL: "https://x.moraware.net/files/49.png"},
					{Cells: 2, Description: "#50 | big piece", HasDownloadLink: true, DownloadURL: "https://x.moraware.net/files/50.png"},
					{Cells: 2, Description: "#51 | 10x20", HasDownloadLink: false},
					{Cells: 2, Description: "#52 | 10x20", HasDownloadLink: true},
					{Cells: 2, Description: "drawing.pdf", HasDownloadLink: true, DownloadURL: "https://x.moraware.net/files/d.pdf"},
				},
			},
		},
		files: map[string][]byte{
			"https://x.moraware.net/files/48.png": []byte("photo-48"),
			"https://x.moraware.net/files/49.png": []byte("photo-49"),
		},
	}
}

func issueKinds(issues []model.Issue) []model.IssueKind {
	kinds := make([]model.IssueKind, len(issues))
	for i, issue := range issues {
		kinds[i] = issue.Kind
	}
	return kinds
}

func TestRunCompleted(t *testing.T) {
	pages := fixturePages()
	store := newStubStore()
	store.outcomes[48] = model.SyncChanged
	objects := &stubObjects{}
	recorder := &stubRecorder{}
	reportPath := filepath.Join(t.TempDir(), "reports", "last_sync_issues.json")

	started := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	s := &Syncer{
		Pages:          pages,
		Store:          store,
		Objects:        objects,
		Runs:           recorder,
		ReportPath:     reportPath,
		UpdateJobNotes: true,
		Now:            func() time.Time { return started },
	}

	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	require.True(t, rep.CrawlCompletedSuccessfully)
	require.True(t, rep.Reconciled)

	expectStart := started.Truncate(time.Microsecond)
	require.Equal(t, []time.Time{expectStart}, store.reconciled)
	require.Equal(t, expectStart, rep.RunStartedAt)

	// 50 failed to parse; 51 and 52 have no usable link but still parsed.
	require.Equal(t, map[int]int{48: 1, 49: 1, 51: 1, 52: 1}, store.seenCalls)
	for _, at := range store.seenAt {
		require.Equal(t, expectStart, at)
	}

	require.Len(t, store.synced, 2)
	first := store.synced[0]
	require.Equal(t, 48, first.ID)
	require.Equal(t, "Quartz", first.Material)
	require.Equal(t, "Cambria Hailey", first.Name)
	require.Equal(t, model.StatusSold, first.Status)
	require.Equal(t, "3cm", first.Thickness)
	require.Equal(t, "https://x.moraware.net/files/48.png", first.SourceImageURL)
	require.True(t, store.synced[1].LShaped)

	hash := photo.Hash([]byte("photo-48"))
	path := fmt.Sprintf("48_%s.png", hash)
	require.Equal(t, map[string][]byte{path: []byte("photo-48")}, objects.uploads)
	require.Equal(t, hash, store.photos[48].Hash)
	require.Equal(t, "https://cdn.local/remnant-images/"+path, store.photos[48].PublicURL)
	require.NotContains(t, store.photos, 49)

	require.Equal(t, []model.IssueKind{
		model.IssueParseSizeFailed,
		model.IssueMissingDownloadLink,
		model.IssueEmptyDownloadHref,
		model.IssueMissingFilesTable,
	}, issueKinds(rep.Issues))
	require.Equal(t, 50, *rep.Issues[0].RemnantID)
	require.Equal(t, "#50 | big piece", rep.Issues[0].Details)
	require.Equal(t, job2, rep.Issues[3].JobURL)

	require.Equal(t, model.Summary{
		RowsSeen:         7,
		RowsWithID:       5,
		Changed:          1,
		NoChange:         1,
		PhotosDownloaded: 1,
		PhotosUploaded:   1,
		JobsProcessed:    1,
	}, rep.Summary)

	require.Equal(t, map[string][]int{job1: {48, 49, 50, 51, 52}}, pages.notes)

	onDisk, err := ReadReport(reportPath)
	require.NoError(t, err)
	require.Equal(t, rep.RunID, onDisk.RunID)
	require.Equal(t, 4, onDisk.IssueCount)
	require.True(t, onDisk.CrawlCompletedSuccessfully)

	require.Len(t, recorder.reports, 1)
	require.Equal(t, rep.RunID, recorder.reports[0].RunID)
}

func TestRunSkipsUploadForSameHash(t *testing.T) {
	pages := fixturePages()
	store := newStubStore()
	store.outcomes[48] = model.SyncChanged
	store.outcomes[49] = model.SyncChanged
	store.hashes[48] = photo.Hash([]byte("photo-48"))
	objects := &stubObjects{}

	rep, err := (&Syncer{Pages: pages, Store: store, Objects: objects}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, rep.Summary.PhotosDownloaded)
	require.Equal(t, 1, rep.Summary.PhotosSkippedSameHash)
	require.Equal(t, 1, rep.Summary.PhotosUploaded)
	require.Len(t, objects.uploads, 1)
	require.NotContains(t, store.photos, 48)
	require.Contains(t, store.photos, 49)
}

func TestRunFatalPageErrorSkipsReconcile(t *testing.T) {
	pages := fixturePages()
	pages.jobURLs = []string{job1, job3, job2}
	pages.pageErrs = map[string]error{job3: errors.New("connection reset by peer")}
	store := newStubStore()
	reportPath := filepath.Join(t.TempDir(), "report.json")

	rep, err := (&Syncer{Pages: pages, Store: store, Objects: &stubObjects{}, ReportPath: reportPath}).Run(context.Background())
	require.ErrorContains(t, err, "connection reset by peer")
	require.False(t, rep.CrawlCompletedSuccessfully)
	require.False(t, rep.Reconciled)
	require.Empty(t, store.reconciled)
	require.Equal(t, 1, rep.TotalErrors)
	require.Contains(t, rep.FatalError, "connection reset by peer")

	// Work done before the failure still counts.
	require.Equal(t, 1, store.seenCalls[48])
	require.Equal(t, []string{job1, job3}, pages.pagesAsked)

	onDisk, err := ReadReport(reportPath)
	require.NoError(t, err)
	require.False(t, onDisk.CrawlCompletedSuccessfully)
}

func TestRunLoginFailureSkipsReconcile(t *testing.T) {
	pages := fixturePages()
	pages.loginErr = errors.New("failed to login to moraware")
	store := newStubStore()

	rep, err := (&Syncer{Pages: pages, Store: store, Objects: &stubObjects{}}).Run(context.Background())
	require.Error(t, err)
	require.False(t, rep.CrawlCompletedSuccessfully)
	require.Empty(t, store.reconciled)
	require.Empty(t, store.seenCalls)
	require.Empty(t, pages.pagesAsked)
}

func TestRunCancelledSkipsReconcile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newStubStore()
	rep, err := (&Syncer{Pages: fixturePages(), Store: store, Objects: &stubObjects{}}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, rep.CrawlCompletedSuccessfully)
	require.Empty(t, store.reconciled)
}

func TestRowErrorsDoNotAbortCrawl(t *testing.T) {
	pages := fixturePages()
	pages.notesErr = errors.New("could not save job notes")
	store := newStubStore()
	store.syncErrs[48] = errors.New("rpc timeout")
	store.panicOn = 49
	store.outcomes[51] = model.SyncChanged

	rep, err := (&Syncer{Pages: pages, Store: store, Objects: &stubObjects{}, UpdateJobNotes: true}).Run(context.Background())
	require.NoError(t, err)
	require.True(t, rep.CrawlCompletedSuccessfully)
	require.Len(t, store.reconciled, 1)

	require.Equal(t, 2, rep.Summary.Errors)
	require.Equal(t, 2, rep.TotalErrors)
	kinds := issueKinds(rep.Issues)
	require.Equal(t, model.IssueRowException, kinds[0])
	require.Contains(t, rep.Issues[0].Details, "rpc timeout")
	require.Equal(t, model.IssueRowException, kinds[1])
	require.Contains(t, rep.Issues[1].Details, "panic: boom")
	require.Contains(t, kinds, model.IssueJobNotesUpdateFailed)

	require.Equal(t, 48, *rep.Issues[0].RemnantID)
	require.Equal(t, 49, *rep.Issues[1].RemnantID)

	// Neither a failed sync call nor a panic skips the seen mark.
	require.Equal(t, 1, store.seenCalls[48])
	require.Equal(t, 1, store.seenCalls[49])
	require.Contains(t, store.seenCalls, 51)
}

func TestRunJobListFailureSkipsReconcile(t *testing.T) {
	pages := fixturePages()
	pages.jobURLsErr = errors.New("job list page 2: status 500")
	store := newStubStore()

	rep, err := (&Syncer{Pages: pages, Store: store, Objects: &stubObjects{}}).Run(context.Background())
	require.ErrorContains(t, err, "collect job urls")
	require.False(t, rep.CrawlCompletedSuccessfully)
	require.False(t, rep.Reconciled)
	require.Empty(t, store.reconciled)
	require.Empty(t, pages.pagesAsked)
	require.Contains(t, rep.FatalError, "status 500")
}

func TestPhotoDownloadFailureIsRowError(t *testing.T) {
	pages := fixturePages()
	delete(pages.files, "https://x.moraware.net/files/48.png")
	store := newStubStore()
	store.outcomes[48] = model.SyncChanged
	objects := &stubObjects{}

	rep, err := (&Syncer{Pages: pages, Store: store, Objects: objects}).Run(context.Background())
	require.NoError(t, err)
	require.True(t, rep.Reconciled)
	require.Len(t, store.reconciled, 1)

	require.Equal(t, 1, rep.Summary.Errors)
	require.Equal(t, 1, rep.Summary.Changed)
	require.Zero(t, rep.Summary.PhotosDownloaded)
	require.Empty(t, objects.uploads)

	require.Equal(t, model.IssueRowException, rep.Issues[0].Kind)
	require.Equal(t, 48, *rep.Issues[0].RemnantID)
	require.Contains(t, rep.Issues[0].Details, "download photo for remnant 48")
	require.Equal(t, 1, store.seenCalls[48])
}

func TestRunReconcileFailure(t *testing.T) {
	store := newStubStore()
	store.reconcileErr = errors.New("function reconcile_deletions does not exist")

	rep, err := (&Syncer{Pages: fixturePages(), Store: store, Objects: &stubObjects{}}).Run(context.Background())
	require.ErrorContains(t, err, "reconcile deletions")
	require.True(t, rep.CrawlCompletedSuccessfully)
	require.False(t, rep.Reconciled)
}
