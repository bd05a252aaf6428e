// Package uploads delivers files to the backend and keeps the ones that could
// not be sent while offline, draining them once connectivity returns.
package uploads

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eshaffer321/docvault-go/internal/connectivity"
	"github.com/eshaffer321/docvault-go/internal/observable"
	"github.com/eshaffer321/docvault-go/internal/transport"
	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Transport executes a single logical request
type Transport interface {
	Execute(ctx context.Context, r *transport.Request, result interface{}) error
}

// TokenSource supplies the bearer token attached to uploads
type TokenSource interface {
	ValidToken(ctx context.Context) (string, error)
}

// Config configures a Queue
type Config struct {
	Transport    Transport
	Store        Store
	Connectivity connectivity.Observer
	Tokens       TokenSource
	Logger       types.Logger

	// SyncInterval is the drain cadence while online
	SyncInterval time.Duration

	// Concurrency bounds simultaneous deliveries during a drain
	Concurrency int

	// Now stamps new entries
	Now func() time.Time
}

// DrainResult summarizes one pass over the queue
type DrainResult struct {
	Attempted int
	Delivered int
	Failed    int
}

// Queue uploads files and retries the ones queued while offline
type Queue struct {
	rest         Transport
	store        Store
	connectivity connectivity.Observer
	tokens       TokenSource
	logger       types.Logger
	interval     time.Duration
	concurrency  int
	now          func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}

	count        *observable.Value[int]
	errorMessage *observable.Value[string]

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a Queue. Call Start to enable background draining.
func NewQueue(cfg Config) (*Queue, error) {
	if cfg.Transport == nil {
		return nil, errors.New("uploads: transport is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("uploads: store is required")
	}

	// Set defaults
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = types.DefaultSyncInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Queue{
		rest:         cfg.Transport,
		store:        cfg.Store,
		connectivity: cfg.Connectivity,
		tokens:       cfg.Tokens,
		logger:       cfg.Logger,
		interval:     cfg.SyncInterval,
		concurrency:  cfg.Concurrency,
		now:          cfg.Now,
		inFlight:     make(map[string]struct{}),
		count:        observable.New(0),
		errorMessage: observable.New(""),
	}, nil
}

// Upload sends the file now, or queues it when there is no connectivity.
// A queued upload is reported as a KindNoInternet error.
func (q *Queue) Upload(ctx context.Context, fileLocation string, metadata map[string]string) (*types.UploadedResource, error) {
	q.errorMessage.Set("")

	// Unreadable files fail here whether or not we are online
	body, contentType, err := transport.EncodeMultipart(fileLocation, metadata)
	if err != nil {
		q.errorMessage.Set(types.Message(err))
		return nil, err
	}

	if !q.online() {
		return nil, q.enqueueOffline(ctx, fileLocation, metadata)
	}

	res, err := q.deliver(ctx, body, contentType)
	if types.KindOf(err) == types.KindNoInternet {
		return nil, q.enqueueOffline(ctx, fileLocation, metadata)
	}
	if err != nil {
		q.errorMessage.Set(types.Message(err))
		if q.logger != nil {
			q.logger.Warn("Upload failed", "kind", types.KindOf(err), "error", err)
		}
		return nil, err
	}

	if q.logger != nil {
		q.logger.Info("Upload complete", "id", res.ID)
	}
	return res, nil
}

func (q *Queue) enqueueOffline(ctx context.Context, fileLocation string, metadata map[string]string) error {
	entry := &types.PendingUpload{
		FileLocation: fileLocation,
		Metadata:     copyMetadata(metadata),
		EnqueuedAt:   q.now().UTC(),
	}
	if err := q.store.Put(ctx, entry); err != nil {
		q.errorMessage.Set(types.Message(err))
		return err
	}
	q.refreshCount(ctx)

	if q.logger != nil {
		q.logger.Info("Upload queued until online", "location", fileLocation)
	}
	return types.NewError(types.KindNoInternet, 0, nil)
}

func (q *Queue) deliver(ctx context.Context, body []byte, contentType string) (*types.UploadedResource, error) {
	req := &transport.Request{
		Method:      http.MethodPost,
		Path:        types.UploadPath,
		RawBody:     body,
		ContentType: contentType,
	}

	if q.tokens != nil {
		token, err := q.tokens.ValidToken(ctx)
		switch {
		case err == nil:
			req = req.WithBearer(token)
		case errors.Is(err, types.ErrNotAuthenticated):
		default:
			return nil, err
		}
	}

	var res types.UploadedResource
	if err := q.rest.Execute(ctx, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Drain attempts every queued entry once. Failures stay queued.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	var result DrainResult
	if !q.online() {
		return result, nil
	}

	entries, err := q.store.List(ctx)
	if err != nil {
		return result, err
	}

	var attempted, delivered, failed int64
	var g errgroup.Group
	g.SetLimit(q.concurrency)

	for _, entry := range entries {
		location := entry.FileLocation
		if !q.claim(location) {
			continue
		}
		g.Go(func() error {
			defer q.release(location)
			ok, tried := q.drainOne(ctx, location)
			if !tried {
				return nil
			}
			atomic.AddInt64(&attempted, 1)
			if ok {
				atomic.AddInt64(&delivered, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	q.refreshCount(ctx)

	result = DrainResult{
		Attempted: int(attempted),
		Delivered: int(delivered),
		Failed:    int(failed),
	}
	if result.Attempted > 0 && q.logger != nil {
		q.logger.Info("Upload queue drained", "attempted", result.Attempted, "delivered", result.Delivered, "failed", result.Failed)
	}
	return result, nil
}

// drainOne delivers the current entry for location while holding its claim.
// It reports whether delivery succeeded and whether it was attempted at all.
func (q *Queue) drainOne(ctx context.Context, location string) (bool, bool) {
	// another drain may have delivered it between List and claim
	entry, err := q.store.Get(ctx, location)
	if err != nil {
		q.logDrainFailure(location, err)
		return false, false
	}
	if entry == nil {
		return false, false
	}

	body, contentType, err := transport.EncodeMultipart(entry.FileLocation, entry.Metadata)
	if err != nil {
		q.logDrainFailure(location, err)
		return false, true
	}

	if _, err := q.deliver(ctx, body, contentType); err != nil {
		q.logDrainFailure(location, err)
		return false, true
	}

	if _, err := q.store.Delete(ctx, location, entry.EnqueuedAt); err != nil {
		q.logDrainFailure(location, err)
	}
	return true, true
}

func (q *Queue) logDrainFailure(location string, err error) {
	if q.logger != nil {
		q.logger.Warn("Queued upload not delivered", "location", location, "kind", types.KindOf(err), "error", err)
	}
}

func (q *Queue) claim(location string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, busy := q.inFlight[location]; busy {
		return false
	}
	q.inFlight[location] = struct{}{}
	return true
}

func (q *Queue) release(location string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, location)
}

func (q *Queue) online() bool {
	return q.connectivity == nil || q.connectivity.Online()
}

func (q *Queue) refreshCount(ctx context.Context) {
	n, err := q.store.Count(ctx)
	if err != nil {
		if q.logger != nil {
			q.logger.Error("Failed to count queued uploads", "error", err)
		}
		return
	}
	q.count.Set(n)
}

// Pending lists queued uploads, oldest first
func (q *Queue) Pending(ctx context.Context) ([]*types.PendingUpload, error) {
	return q.store.List(ctx)
}

// Count is the number of queued uploads
func (q *Queue) Count() int {
	return q.count.Get()
}

func (q *Queue) WatchCount() (<-chan int, func()) {
	return q.count.Watch()
}

// ErrorMessage is the last upload failure, cleared when an upload starts
func (q *Queue) ErrorMessage() string {
	return q.errorMessage.Get()
}

func (q *Queue) WatchErrorMessage() (<-chan string, func()) {
	return q.errorMessage.Watch()
}

func copyMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
