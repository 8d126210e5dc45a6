package hive

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"golang.org/x/sync/singleflight"
)

const defaultSyncIntervalMS = 1000

// syncDaemon reconciles the in-memory metadata graph with the persisted
// gateways whenever the local revision falls behind the hive semaphore.
// Concurrent forceSynchronize calls collapse into one reload.
type syncDaemon struct {
	h        *Hive
	interval time.Duration

	group     singleflight.Group
	closeChan chan struct{}
	closeOnce sync.Once
}

func newSyncDaemon(h *Hive, intervalMS int) *syncDaemon {
	if intervalMS <= 0 {
		intervalMS = defaultSyncIntervalMS
	}
	return &syncDaemon{
		h:         h,
		interval:  time.Duration(intervalMS) * time.Millisecond,
		closeChan: make(chan struct{}),
	}
}

func (d *syncDaemon) ForceSynchronize(ctx context.Context) error {
	_, err, _ := d.group.Do("sync", func() (interface{}, error) {
		return nil, d.h.reload(ctx)
	})
	return err
}

// loop polls the semaphore on a ticker. Errors are logged and the next tick
// retries.
func (d *syncDaemon) loop() {
	span, ctx := trace.StartSpanFromContext(context.Background(), "hive sync")
	ticker := time.NewTicker(d.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := d.ForceSynchronize(ctx); err != nil {
					span.Warnf("synchronize failed: %s", err)
				}
			case <-d.closeChan:
				return
			}
		}
	}()
}

func (d *syncDaemon) Close() {
	d.closeOnce.Do(func() {
		close(d.closeChan)
	})
}

// reload compares the persisted revision with the local one and swaps in a
// freshly loaded graph when they diverge. The hive-wide status always
// follows the persisted row.
func (h *Hive) reload(ctx context.Context) error {
	span := trace.SpanFromContextSafe(ctx)

	sem, err := h.gateways.Semaphore.Load(ctx)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&h.status, uint32(sem.Status))

	if h.graphSnapshot() != nil && atomic.LoadUint64(&h.revision) == sem.Revision {
		return nil
	}

	g, err := h.loadGraph(ctx)
	if err != nil {
		return err
	}
	h.graph.Store(g)
	atomic.StoreUint64(&h.revision, sem.Revision)
	span.Infof("hive %s synchronized at revision %d", h.uri, sem.Revision)
	return nil
}
