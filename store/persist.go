package store

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultSnapshotDelay = 500 * time.Millisecond
	DefaultSnapshotLimit = 64 << 10

	snapshotSuffix = "-state"
)

// Snapshotter is implemented by stores whose intent state (filters,
// pagination) survives restarts.
type Snapshotter interface {
	StoreID() string
	Snapshot() any
	Restore(data []byte) error
}

// Persister writes the session immediately and store snapshots after a quiet
// period, so a burst of changes produces a single write per store.
// A nil *Persister is valid and persists nothing.
type Persister struct {
	kv       KV
	delay    time.Duration
	maxBytes int
	logger   logrus.FieldLogger

	mu      sync.Mutex
	pending map[string]func() any
	timers  map[string]*time.Timer
	closed  bool
}

type PersisterOption func(*Persister)

func WithSnapshotDelay(delay time.Duration) PersisterOption {
	return func(p *Persister) {
		if delay > 0 {
			p.delay = delay
		}
	}
}

func WithSnapshotLimit(maxBytes int) PersisterOption {
	return func(p *Persister) {
		if maxBytes > 0 {
			p.maxBytes = maxBytes
		}
	}
}

func WithPersistLogger(logger logrus.FieldLogger) PersisterOption {
	return func(p *Persister) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPersister(kv KV, opts ...PersisterOption) *Persister {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	p := &Persister{
		kv:       kv,
		delay:    DefaultSnapshotDelay,
		maxBytes: DefaultSnapshotLimit,
		logger:   discard,
		pending:  map[string]func() any{},
		timers:   map[string]*time.Timer{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Save writes v under key right away.
func (p *Persister) Save(ctx context.Context, key string, v any) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.kv.Set(ctx, key, payload)
}

// Load decodes the value stored under key into v and reports whether it existed.
func (p *Persister) Load(ctx context.Context, key string, v any) (bool, error) {
	if p == nil {
		return false, nil
	}
	data, ok, err := p.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Persister) Delete(ctx context.Context, key string) error {
	if p == nil {
		return nil
	}
	return p.kv.Delete(ctx, key)
}

// Schedule records the latest snapshot source for id and (re)starts its timer.
// snapshot runs on the timer goroutine, so it must take its own locks.
func (p *Persister) Schedule(id string, snapshot func() any) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.pending[id] = snapshot
	if timer, ok := p.timers[id]; ok {
		timer.Reset(p.delay)
		return
	}
	p.timers[id] = time.AfterFunc(p.delay, func() {
		p.flushOne(context.Background(), id)
	})
}

// Flush writes every pending snapshot synchronously.
func (p *Persister) Flush(ctx context.Context) {
	if p == nil {
		return
	}
	p.mu.Lock()
	ids := make([]string, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	for _, id := range ids {
		p.flushOne(ctx, id)
	}
}

// Close flushes pending snapshots and stops accepting new ones. The KV is
// owned by the caller.
func (p *Persister) Close(ctx context.Context) {
	if p == nil {
		return
	}
	p.Flush(ctx)
	p.mu.Lock()
	p.closed = true
	for id, timer := range p.timers {
		timer.Stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()
}

// RestoreAll loads each store's snapshot. Corrupt snapshots are logged and skipped.
func (p *Persister) RestoreAll(ctx context.Context, stores ...Snapshotter) {
	if p == nil {
		return
	}
	for _, s := range stores {
		data, ok, err := p.kv.Get(ctx, s.StoreID()+snapshotSuffix)
		if err != nil {
			p.logger.WithError(err).WithField("store", s.StoreID()).Warn("load snapshot")
			continue
		}
		if !ok {
			continue
		}
		if err := s.Restore(data); err != nil {
			p.logger.WithError(err).WithField("store", s.StoreID()).Warn("restore snapshot")
		}
	}
}

func (p *Persister) flushOne(ctx context.Context, id string) {
	p.mu.Lock()
	snapshot, ok := p.pending[id]
	delete(p.pending, id)
	if timer, exists := p.timers[id]; exists {
		timer.Stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(snapshot())
	if err != nil {
		p.logger.WithError(err).WithField("store", id).Warn("encode snapshot")
		return
	}
	if len(payload) > p.maxBytes {
		p.logger.WithFields(logrus.Fields{
			"store": id,
			"bytes": len(payload),
			"limit": p.maxBytes,
		}).Warn("snapshot too large, skipped")
		return
	}
	if err := p.kv.Set(ctx, id+snapshotSuffix, payload); err != nil {
		p.logger.WithError(err).WithField("store", id).Warn("write snapshot")
	}
}
