package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remnantsync/internal/config"
	"remnantsync/internal/crawler"
	"remnantsync/internal/db"
	"remnantsync/internal/observability"
	"remnantsync/internal/repository"
	"remnantsync/internal/storage"
	"remnantsync/internal/syncer"
)

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

// go run ./cmd/sync
// go run ./cmd/sync -report=/tmp/issues.json -notes=false
func main() {
	cfg := config.Load()

	reportPath := flag.String("report", cfg.ReportPath, "Path of the JSON issue report")
	updateNotes := flag.Bool("notes", cfg.UpdateJobNotes, "Write remnant ids back into job notes")
	pageDelay := flag.Duration("delay", cfg.PageDelay, "Pause between job pages")
	flag.Parse()

	observability.SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}
	observability.Start(cfg.MetricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("failed to connect to postgres (pgxpool)", err)
	}
	defer pool.Close()

	// Run history is best effort; the sync itself only needs the pool.
	var runs syncer.RunRecorder
	if conn, err := db.New(cfg.DatabaseURL); err != nil {
		slog.Warn("run history disabled", "err", err)
	} else {
		defer conn.Close()
		if err := db.Migrate(ctx, conn); err != nil {
			slog.Warn("run history disabled", "err", err)
		} else {
			runs = &repository.RunRepository{DB: conn}
		}
	}

	client, err := crawler.NewClient(crawler.ClientOptions{
		ListURL:   cfg.MorawareURL,
		SiteURL:   cfg.MorawareBaseURL,
		Username:  cfg.MorawareUser,
		Password:  cfg.MorawarePass,
		Timeout:   cfg.WaitTimeout,
		PageDelay: *pageDelay,
	})
	if err != nil {
		fatal("failed to initialize moraware client", err)
	}

	s := &syncer.Syncer{
		Pages:          client,
		Store:          &repository.RemnantRepository{DB: pool},
		Objects:        storage.NewBucket(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket),
		Runs:           runs,
		ReportPath:     *reportPath,
		PageDelay:      *pageDelay,
		UpdateJobNotes: *updateNotes,
	}

	t1 := time.Now()
	rep, err := s.Run(ctx)
	slog.Info("sync finished",
		"seconds", time.Since(t1).Seconds(),
		"completed", rep.CrawlCompletedSuccessfully,
		"reconciled", rep.Reconciled,
		"issues", rep.IssueCount,
	)
	if err != nil {
		fatal("sync failed", err)
	}
}
