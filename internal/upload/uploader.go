package upload

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/s3mirror/internal/logging"
	"github.com/dmitrijs2005/s3mirror/internal/mimetype"
	"github.com/dmitrijs2005/s3mirror/internal/store"
)

// Uploader pushes file bytes and metadata to the store. Safe for concurrent
// use across distinct remote keys; the dispatcher guarantees the same key
// is never submitted twice concurrently.
type Uploader struct {
	store       store.Store
	logger      logging.Logger
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func NewUploader(st store.Store, logger logging.Logger, maxAttempts int, baseDelay, maxDelay time.Duration) *Uploader {
	return &Uploader{
		store:       st,
		logger:      logger.With("module", "uploader"),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// Submit executes the task to a terminal outcome. The file is re-read on
// every attempt, so a retry always carries the file's current bytes.
// Transient store failures back off exponentially (base × 2^attempt, capped)
// up to maxAttempts total submissions; fatal failures stop immediately.
func (u *Uploader) Submit(ctx context.Context, task Task) Outcome {
	task.ContentType = mimetype.Resolve(task.LocalPath)

	attempts := 0
	vanished := false

	backoff := retry.WithMaxRetries(uint64(u.maxAttempts-1),
		retry.WithCappedDuration(u.maxDelay, retry.NewExponential(u.baseDelay)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		task.Attempt = attempts
		attempts++

		f, err := os.Open(task.LocalPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				vanished = true
				return err
			}
			// local read trouble is worth another attempt
			return retry.RetryableError(err)
		}
		defer f.Close()

		if err := u.store.Put(ctx, task.RemoteKey, f, task.ContentType); err != nil {
			if store.Classify(err) == store.ClassTransient {
				u.logger.Warn(ctx, "transient store failure",
					"remote_key", task.RemoteKey, "attempt", task.Attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})

	return u.outcome(task, attempts, vanished, err)
}

func (u *Uploader) outcome(task Task, attempts int, vanished bool, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Task: task, Status: StatusSuccess, Attempts: attempts}
	case vanished:
		return Outcome{Task: task, Status: StatusSourceVanished, Attempts: attempts - 1, Err: err}
	case store.Classify(err) == store.ClassFatal:
		return Outcome{Task: task, Status: StatusFatal, Attempts: attempts, Err: err}
	default:
		return Outcome{Task: task, Status: StatusExhausted, Attempts: attempts, Err: err}
	}
}
