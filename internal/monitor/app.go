// Package monitor wires the pieces together: filesystem watch → dispatcher
// → uploader, plus the outcome journal. It owns the process lifecycle:
// start, OS-signal driven stop, and graceful drain of in-flight uploads.
package monitor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/s3mirror/internal/config"
	"github.com/dmitrijs2005/s3mirror/internal/dispatch"
	"github.com/dmitrijs2005/s3mirror/internal/journal"
	"github.com/dmitrijs2005/s3mirror/internal/logging"
	"github.com/dmitrijs2005/s3mirror/internal/store"
	"github.com/dmitrijs2005/s3mirror/internal/upload"
	"github.com/dmitrijs2005/s3mirror/internal/watch"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	store     store.Store
	journal   journal.Repository
	journalDB *sql.DB
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	st, err := store.NewS3Store(context.Background(), store.Options{
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	app := newApp(c, logger, st, nil)

	if c.JournalPath != "" {
		db, err := journal.Open(c.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("journal init error: %w", err)
		}
		app.journalDB = db
		app.journal = journal.NewSQLiteRepository(db)
	}

	return app, nil
}

func newApp(c *config.Config, logger logging.Logger, st store.Store, repo journal.Repository) *App {
	return &App{config: c, logger: logger, store: st, journal: repo}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the monitor and blocks until a stop signal arrives or ctx is
// canceled, then drains: the watch handle is released, no further tasks are
// dispatched, and in-flight uploads are awaited. A failure to establish the
// watch is returned immediately.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	source, err := watch.New(app.config.WatchRoot, app.config.Recursive, app.logger)
	if err != nil {
		return err
	}

	uploader := upload.NewUploader(app.store, app.logger,
		app.config.MaxAttempts, app.config.RetryBaseDelay, app.config.RetryMaxDelay)

	dispatcher := dispatch.New(source.Events(), uploader, app.logger, dispatch.Options{
		Prefix:      app.config.NormalizedPrefix(),
		Window:      app.config.DebounceInterval,
		Concurrency: int64(app.config.Concurrency),
	}, app.handleOutcome)

	app.logger.Info(ctx, "Starting monitor...",
		"watch_root", app.config.WatchRoot,
		"bucket", app.config.S3Bucket,
		"prefix", app.config.NormalizedPrefix(),
		"recursive", app.config.Recursive)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	<-ctx.Done()

	app.logger.Info(ctx, "Stopping monitor...")
	if err := source.Close(); err != nil {
		app.logger.Warn(ctx, "watch close failed", "error", err)
	}

	wg.Wait()

	if app.journalDB != nil {
		_ = app.journalDB.Close()
	}

	app.logger.Info(ctx, "Monitor stopped")
	return nil
}

// handleOutcome is the single sink for terminal upload outcomes: one
// structured log record per task, mirrored into the journal when enabled.
// Runs on the dispatcher goroutine.
func (app *App) handleOutcome(out upload.Outcome) {
	ctx := context.Background()

	detail := ""
	if out.Err != nil {
		detail = out.Err.Error()
	}

	args := []any{
		"remote_key", out.Task.RemoteKey,
		"status", out.Status.String(),
		"attempts", out.Attempts,
	}
	if detail != "" {
		args = append(args, "error", detail)
	}

	switch out.Status {
	case upload.StatusSuccess:
		app.logger.Info(ctx, "upload complete", args...)
	case upload.StatusSourceVanished:
		app.logger.Info(ctx, "source vanished, upload skipped", args...)
	case upload.StatusFatal:
		app.logger.Error(ctx, "upload failed permanently", args...)
	case upload.StatusExhausted:
		app.logger.Error(ctx, "upload failed after max attempts", args...)
	}

	if app.journal == nil {
		return
	}
	entry := &journal.Entry{
		TaskID:     out.Task.ID,
		RemoteKey:  out.Task.RemoteKey,
		LocalPath:  out.Task.LocalPath,
		Status:     out.Status.String(),
		Attempts:   out.Attempts,
		Detail:     detail,
		RecordedAt: time.Now().UTC(),
	}
	if err := app.journal.Record(ctx, entry); err != nil {
		app.logger.Warn(ctx, "journal write failed", "remote_key", out.Task.RemoteKey, "error", err)
	}
}
