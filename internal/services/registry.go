package services

import (
	"sync"

	"github.com/lingualab/oralis/internal/exam"
)

// Registry tracks the live engines on this instance, keyed by session id.
// Engines remove themselves when their Run loop returns.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*exam.Engine
}

func NewRegistry() *Registry {
	return &Registry{engines: map[string]*exam.Engine{}}
}

func (r *Registry) Put(sessionID string, e *exam.Engine) {
	r.mu.Lock()
	r.engines[sessionID] = e
	r.mu.Unlock()
}

func (r *Registry) Get(sessionID string) (*exam.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[sessionID]
	return e, ok
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.engines, sessionID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}
