package uploads

import (
	"context"
	"time"
)

// Start drains the queue whenever connectivity comes back and on every
// SyncInterval while online, until Stop or ctx is done
func (q *Queue) Start(ctx context.Context) {
	q.runMu.Lock()
	if q.running {
		q.runMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.running = true
	q.runMu.Unlock()

	q.refreshCount(ctx)

	var updates <-chan bool
	unsubscribe := func() {}
	if q.connectivity != nil {
		updates, unsubscribe = q.connectivity.Subscribe()
	}

	q.wg.Add(1)
	go q.run(ctx, updates, unsubscribe)
}

// Stop ends background draining and waits for the loop to exit
func (q *Queue) Stop() {
	q.runMu.Lock()
	if !q.running {
		q.runMu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.runMu.Unlock()

	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context, updates <-chan bool, unsubscribe func()) {
	defer q.wg.Done()
	defer unsubscribe()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	// without an observer the queue is always online
	online := updates == nil
	if online {
		q.drain(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			restored := next && !online
			online = next
			if restored {
				if q.logger != nil {
					q.logger.Info("Back online, draining upload queue")
				}
				q.drain(ctx)
			}
		case <-ticker.C:
			if online {
				q.drain(ctx)
			}
		}
	}
}

func (q *Queue) drain(ctx context.Context) {
	if _, err := q.Drain(ctx); err != nil && ctx.Err() == nil && q.logger != nil {
		q.logger.Error("Upload queue drain failed", "error", err)
	}
}
