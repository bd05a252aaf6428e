package uploads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eshaffer321/docvault-go/internal/connectivity"
	"github.com/eshaffer321/docvault-go/internal/transport"
	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUploadServer records multipart uploads by title
type fakeUploadServer struct {
	server *httptest.Server

	mu     sync.Mutex
	titles map[string]int
	auth   []string
	status int
	delay  time.Duration
}

func newFakeUploadServer(t *testing.T) *fakeUploadServer {
	t.Helper()
	f := &fakeUploadServer{titles: map[string]int{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != types.UploadPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		status, delay := f.status, f.delay
		f.titles[r.FormValue("title")]++
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()

		time.Sleep(delay)

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"rejected"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":195,"title":"` + r.FormValue("title") + `","category":"` + r.FormValue("category") + `"}`))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUploadServer) hits(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.titles[title]
}

func (f *fakeUploadServer) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.titles {
		n += c
	}
	return n
}

func (f *fakeUploadServer) transport() *transport.RESTTransport {
	return transport.NewRESTTransport(&transport.Options{
		BaseURL:     f.server.URL,
		RetryConfig: &types.RetryConfig{MaxAttempts: 1, RetryWait: time.Millisecond, MaxWait: time.Millisecond},
	})
}

type staticTokens string

func (s staticTokens) ValidToken(context.Context) (string, error) {
	if s == "" {
		return "", types.ErrNotAuthenticated
	}
	return string(s), nil
}

type transportFunc func(ctx context.Context, r *transport.Request, result interface{}) error

func (f transportFunc) Execute(ctx context.Context, r *transport.Request, result interface{}) error {
	return f(ctx, r, result)
}

func writeDoc(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 "+name), 0o600))
	return "file://" + path
}

func newTestQueue(t *testing.T, rest Transport, conn connectivity.Observer, tweak ...func(*Config)) (*Queue, *SQLiteStore) {
	t.Helper()
	store := openTestStore(t)
	cfg := Config{
		Transport:    rest,
		Store:        store,
		Connectivity: conn,
		SyncInterval: time.Hour,
	}
	for _, fn := range tweak {
		fn(&cfg)
	}
	q, err := NewQueue(cfg)
	require.NoError(t, err)
	return q, store
}

func TestUpload_OnlineDeliversWithBearer(t *testing.T) {
	server := newFakeUploadServer(t)
	q, _ := newTestQueue(t, server.transport(), connectivity.NewManual(true), func(c *Config) {
		c.Tokens = staticTokens("a1")
	})

	res, err := q.Upload(context.Background(), writeDoc(t, "passport.pdf"), map[string]string{"title": "Passport", "category": "identity"})

	require.NoError(t, err)
	assert.Equal(t, 195, res.ID)
	assert.Equal(t, "Passport", res.Title)
	assert.Equal(t, "identity", res.Category)
	assert.Equal(t, 1, server.hits("Passport"))
	assert.Equal(t, []string{"Bearer a1"}, server.auth)
	assert.Equal(t, 0, q.Count())
}

func TestUpload_SignedOutSendsWithoutBearer(t *testing.T) {
	server := newFakeUploadServer(t)
	q, _ := newTestQueue(t, server.transport(), nil, func(c *Config) {
		c.Tokens = staticTokens("")
	})

	_, err := q.Upload(context.Background(), writeDoc(t, "a.pdf"), map[string]string{"title": "A"})

	require.NoError(t, err)
	assert.Equal(t, []string{""}, server.auth)
}

func TestUpload_OfflineQueuesExactlyOnce(t *testing.T) {
	server := newFakeUploadServer(t)
	q, _ := newTestQueue(t, server.transport(), connectivity.NewManual(false))
	location := writeDoc(t, "lease.pdf")
	metadata := map[string]string{"title": "Lease", "category": "housing"}

	_, err := q.Upload(context.Background(), location, metadata)

	assert.Equal(t, types.KindNoInternet, types.KindOf(err))
	assert.Equal(t, 0, server.total())
	assert.Equal(t, 1, q.Count())
	assert.Empty(t, q.ErrorMessage())

	entries, err := q.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, location, entries[0].FileLocation)
	if diff := cmp.Diff(metadata, entries[0].Metadata); diff != "" {
		t.Errorf("queued metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestUpload_SameFileQueuedTwiceReplaces(t *testing.T) {
	server := newFakeUploadServer(t)
	q, _ := newTestQueue(t, server.transport(), connectivity.NewManual(false))
	location := writeDoc(t, "lease.pdf")

	_, _ = q.Upload(context.Background(), location, map[string]string{"title": "v1"})
	_, _ = q.Upload(context.Background(), location, map[string]string{"title": "v2"})

	entries, err := q.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v2", entries[0].Metadata["title"])
	assert.Equal(t, 1, q.Count())
}

func TestUpload_UnreadableFileIsNotQueued(t *testing.T) {
	for _, online := range []bool{true, false} {
		t.Run(fmt.Sprintf("online=%t", online), func(t *testing.T) {
			server := newFakeUploadServer(t)
			q, _ := newTestQueue(t, server.transport(), connectivity.NewManual(online))

			_, err := q.Upload(context.Background(), "file:///definitely/missing.pdf", nil)

			require.Error(t, err)
			assert.Equal(t, types.KindUnknown, types.KindOf(err))
			assert.Equal(t, 0, q.Count())
			assert.Equal(t, 0, server.total())
			assert.NotEmpty(t, q.ErrorMessage())
		})
	}
}

func TestUpload_RejectedSetsErrorMessage(t *testing.T) {
	server := newFakeUploadServer(t)
	server.status = http.StatusBadRequest
	q, _ := newTestQueue(t, server.transport(), connectivity.NewManual(true))

	_, err := q.Upload(context.Background(), writeDoc(t, "a.pdf"), map[string]string{"title": "A"})

	assert.Equal(t, types.KindClient, types.KindOf(err))
	assert.Equal(t, "rejected", q.ErrorMessage())
	assert.Equal(t, 0, q.Count())
}

func TestUpload_NoInternetDuringDeliveryQueues(t *testing.T) {
	rest := transportFunc(func(ctx context.Context, r *transport.Request, result interface{}) error {
		return types.NewError(types.KindNoInternet, 0, nil)
	})
	q, _ := newTestQueue(t, rest, connectivity.NewManual(true))

	_, err := q.Upload(context.Background(), writeDoc(t, "a.pdf"), nil)

	assert.Equal(t, types.KindNoInternet, types.KindOf(err))
	assert.Equal(t, 1, q.Count())
}

func TestDrain_ConcurrentDrainsDeliverEachEntryOnce(t *testing.T) {
	server := newFakeUploadServer(t)
	server.delay = 10 * time.Millisecond
	conn := connectivity.NewManual(false)
	q, _ := newTestQueue(t, server.transport(), conn)

	titles := []string{"a", "b", "c", "d", "e"}
	for _, title := range titles {
		_, _ = q.Upload(context.Background(), writeDoc(t, title+".pdf"), map[string]string{"title": title})
	}
	require.Equal(t, len(titles), q.Count())

	conn.Set(true)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Drain(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, title := range titles {
		assert.Equal(t, 1, server.hits(title), title)
	}
	assert.Equal(t, 0, q.Count())
}

func TestDrain_FailureStaysQueued(t *testing.T) {
	server := newFakeUploadServer(t)
	conn := connectivity.NewManual(false)
	q, _ := newTestQueue(t, server.transport(), conn)
	_, _ = q.Upload(context.Background(), writeDoc(t, "a.pdf"), map[string]string{"title": "A"})

	server.mu.Lock()
	server.status = http.StatusInternalServerError
	server.mu.Unlock()
	conn.Set(true)

	res, err := q.Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, DrainResult{Attempted: 1, Failed: 1}, res)
	assert.Equal(t, 1, q.Count())
}

func TestDrain_OfflineIsNoop(t *testing.T) {
	server := newFakeUploadServer(t)
	q, _ := newTestQueue(t, server.transport(), connectivity.NewManual(false))
	_, _ = q.Upload(context.Background(), writeDoc(t, "a.pdf"), nil)

	res, err := q.Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, res)
	assert.Equal(t, 1, q.Count())
}

func TestDrain_EntryReplacedDuringDeliveryIsKept(t *testing.T) {
	var store *SQLiteStore
	location := writeDoc(t, "a.pdf")
	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	rest := transportFunc(func(ctx context.Context, r *transport.Request, result interface{}) error {
		// the user re-queues the same file while the old copy is on the wire
		return store.Put(ctx, &types.PendingUpload{
			FileLocation: location,
			Metadata:     map[string]string{"title": "edited"},
			EnqueuedAt:   later,
		})
	})
	conn := connectivity.NewManual(false)
	q, s := newTestQueue(t, rest, conn)
	store = s

	_, _ = q.Upload(context.Background(), location, map[string]string{"title": "original"})
	conn.Set(true)

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)

	entries, err := q.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "edited", entries[0].Metadata["title"])
	assert.Equal(t, later, entries[0].EnqueuedAt)
}

func TestStart_DrainsWhenConnectivityReturns(t *testing.T) {
	server := newFakeUploadServer(t)
	conn := connectivity.NewManual(false)
	q, _ := newTestQueue(t, server.transport(), conn)
	_, _ = q.Upload(context.Background(), writeDoc(t, "a.pdf"), map[string]string{"title": "A"})

	q.Start(context.Background())
	defer q.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, server.total(), "nothing is sent while offline")

	conn.Set(true)

	assert.Eventually(t, func() bool { return q.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, server.hits("A"))
}

func TestStart_PeriodicDrainWhileOnline(t *testing.T) {
	server := newFakeUploadServer(t)
	conn := connectivity.NewManual(true)
	q, _ := newTestQueue(t, server.transport(), conn, func(c *Config) {
		c.SyncInterval = 10 * time.Millisecond
	})

	q.Start(context.Background())
	defer q.Stop()

	// queued behind the loop's back, e.g. by an earlier process
	store := q.store
	require.NoError(t, store.Put(context.Background(), &types.PendingUpload{
		FileLocation: writeDoc(t, "late.pdf"),
		Metadata:     map[string]string{"title": "late"},
		EnqueuedAt:   time.Now(),
	}))

	assert.Eventually(t, func() bool { return server.hits("late") == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return q.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStop_Idempotent(t *testing.T) {
	q, _ := newTestQueue(t, newFakeUploadServer(t).transport(), nil)

	q.Start(context.Background())
	q.Stop()
	q.Stop()
}
