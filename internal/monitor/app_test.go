package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/s3mirror/internal/config"
	"github.com/dmitrijs2005/s3mirror/internal/journal"
	"github.com/dmitrijs2005/s3mirror/internal/logging"
	"github.com/dmitrijs2005/s3mirror/internal/watch"
)

type put struct {
	key         string
	contentType string
	body        []byte
}

type fakeStore struct {
	mu   sync.Mutex
	puts []put
}

func (f *fakeStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, put{key: key, contentType: contentType, body: b})
	return nil
}

func (f *fakeStore) calls() []put {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]put(nil), f.puts...)
}

func testConfig(root string) *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.WatchRoot = root
	c.S3Bucket = "bucket"
	c.KeyPrefix = "up/"
	c.DebounceInterval = 150 * time.Millisecond
	return c
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func runApp(t *testing.T, app *App) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(10 * time.Second):
				t.Error("app did not stop")
			}
		})
	}
}

func TestApp_Run_BadWatchRootFails(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))
	app := newApp(cfg, discardLogger(), &fakeStore{}, nil)

	err := app.Run(context.Background())
	require.Error(t, err)

	var setupErr *watch.SetupError
	assert.True(t, errors.As(err, &setupErr))
}

func TestApp_Run_CreateThenModifyWithinWindowUploadsOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	st := &fakeStore{}

	db, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := journal.NewSQLiteRepository(db)

	app := newApp(cfg, discardLogger(), st, repo)
	stop := runApp(t, app)
	defer stop()

	// give the watch a moment to establish
	time.Sleep(200 * time.Millisecond)

	target := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o600))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(target, []byte("hi there"), 0o600))

	require.Eventually(t, func() bool {
		return len(st.calls()) >= 1
	}, 5*time.Second, 20*time.Millisecond)

	// no further upload may follow for the coalesced burst
	time.Sleep(500 * time.Millisecond)

	calls := st.calls()
	require.Len(t, calls, 1, "create+modify within the window must upload once")
	assert.Equal(t, "up/a.txt", calls[0].key)
	assert.Equal(t, "text/plain", calls[0].contentType)
	assert.Equal(t, []byte("hi there"), calls[0].body)

	stop()

	recent, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "up/a.txt", recent[0].RemoteKey)
	assert.Equal(t, "success", recent[0].Status)
}

func TestApp_Run_TwoFilesUploadWithTheirContentTypes(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	st := &fakeStore{}

	app := newApp(cfg, discardLogger(), st, nil)
	stop := runApp(t, app)
	defer stop()

	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"k":1}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.png"), []byte("png-bytes"), 0o600))

	require.Eventually(t, func() bool {
		return len(st.calls()) >= 2
	}, 5*time.Second, 20*time.Millisecond)

	types := map[string]string{}
	for _, c := range st.calls() {
		types[c.key] = c.contentType
	}
	assert.Equal(t, "application/json", types["up/b.json"])
	assert.Equal(t, "image/png", types["up/c.png"])
}
