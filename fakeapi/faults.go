package fakeapi

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// FaultConfig describes an injected failure for one request path.
type FaultConfig struct {
	StatusCode int           `json:"statusCode"`
	Body       string        `json:"body,omitempty"`
	Delay      time.Duration `json:"delayMs,omitempty"`
	Rate       float64       `json:"rate"` // 0.0-1.0, probability of the fault triggering
}

// FaultRegistry holds injected faults keyed by request path (without the /api prefix).
type FaultRegistry struct {
	mu     sync.RWMutex
	faults map[string]FaultConfig
}

func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{faults: make(map[string]FaultConfig)}
}

func (fr *FaultRegistry) Set(path string, fault FaultConfig) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fault.Rate == 0 {
		fault.Rate = 1.0
	}
	fr.faults[path] = fault
}

func (fr *FaultRegistry) Remove(path string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, existed := fr.faults[path]
	delete(fr.faults, path)
	return existed
}

// Check returns the fault for path, or nil if none applies to this request.
func (fr *FaultRegistry) Check(path string) *FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	if f, ok := fr.faults[path]; ok {
		if f.Rate >= 1.0 || rand.Float64() < f.Rate {
			return &f
		}
	}
	return nil
}

func (fr *FaultRegistry) All() map[string]FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	out := make(map[string]FaultConfig, len(fr.faults))
	for k, v := range fr.faults {
		out[k] = v
	}
	return out
}

func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults = make(map[string]FaultConfig)
}

// injectFaults applies registered faults. It is mounted inside the API group
// so the admin endpoints stay reachable.
func (s *Server) injectFaults(prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
				path = path[len(prefix):]
			}
			if fault := s.faults.Check(path); fault != nil {
				if fault.Delay > 0 {
					select {
					case <-time.After(fault.Delay):
					case <-r.Context().Done():
						return
					}
				}
				if fault.StatusCode > 0 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(fault.StatusCode)
					if fault.Body != "" {
						fmt.Fprint(w, fault.Body)
					} else {
						fmt.Fprintf(w, `{"message":"injected fault","errorCode":"FAULT_%d"}`, fault.StatusCode)
					}
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
