package stt

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a recognizer for development without cloud credentials. Each turn
// produces a couple of interims followed by one final, triggered by audio
// frames arriving.
type Mock struct {
	mu       sync.Mutex
	cb       Callback
	frames   int
	turn     int
	finalOut bool
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Start(ctx context.Context, cb Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb = cb
	m.frames = 0
	m.finalOut = false
	m.turn++
	return nil
}

func (m *Mock) SendAudio(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cb == nil {
		return
	}
	m.frames++
	switch {
	case m.frames < 3:
		m.cb.OnInterim(fmt.Sprintf("simulated answer %d", m.turn))
	case !m.finalOut:
		m.finalOut = true
		m.cb.OnFinal(fmt.Sprintf("simulated answer %d, spoken in full.", m.turn), 0.93)
	}
}

func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb = nil
	return nil
}

func (m *Mock) Close() error { return nil }
