package store

import (
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrSuperseded is returned when a newer request for the same state replaced
// this one before its response arrived.
var ErrSuperseded = errors.New("superseded by a newer request")

// base holds what every store shares: the state mutex, per-field request
// sequences, the in-flight counter and the last error message.
// mu is never held across network calls.
type base struct {
	mu      sync.Mutex
	seq     map[string]uint64
	pending int
	err     string
	logger  logrus.FieldLogger
	persist *Persister
}

func newBase(persist *Persister, logger logrus.FieldLogger) base {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return base{seq: map[string]uint64{}, persist: persist, logger: logger}
}

// start issues a new token for field. Callers hold mu.
func (b *base) start(field string) uint64 {
	b.pending++
	b.seq[field]++
	return b.seq[field]
}

// finish settles a request started with start. Callers hold mu. It reports
// whether token is still the latest for field; stale results must not be
// committed and their errors are not recorded.
func (b *base) finish(field string, token uint64, err error) bool {
	if b.pending > 0 {
		b.pending--
	}
	if b.seq[field] != token {
		return false
	}
	if err != nil {
		b.err = err.Error()
	} else {
		b.err = ""
	}
	return true
}

// fail records err without touching sequences. Callers hold mu.
func (b *base) fail(err error) {
	if err != nil {
		b.err = err.Error()
	}
}

func (b *base) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending > 0
}

func (b *base) Err() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *base) ClearError() {
	b.mu.Lock()
	b.err = ""
	b.mu.Unlock()
}
