package exam

import (
	"strings"
	"sync"
)

// transcript accumulates one turn's speech-to-text results. Finalized text
// is append-only; interim text is replaced as later text arrives and only
// counts if the turn ends before any final lands.
type transcript struct {
	mu      sync.Mutex
	finals  []string
	confSum float64
	interim string

	onInterim func(text string)
	errCh     chan error
}

func newTranscript(onInterim func(text string)) *transcript {
	return &transcript{
		onInterim: onInterim,
		errCh:     make(chan error, 1),
	}
}

func (t *transcript) OnInterim(text string) {
	t.mu.Lock()
	t.interim = text
	t.mu.Unlock()
	if t.onInterim != nil {
		t.onInterim(text)
	}
}

func (t *transcript) OnFinal(text string, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.finals = append(t.finals, text)
	t.confSum += confidence
	t.interim = ""
}

func (t *transcript) OnError(err error) {
	select {
	case t.errCh <- err:
	default:
	}
}

// Result returns the accumulated transcript and the mean confidence of its
// finalized stretches.
func (t *transcript) Result() (string, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	text := strings.Join(t.finals, " ")
	if text == "" {
		text = strings.TrimSpace(t.interim)
	}

	var conf float64
	if n := len(t.finals); n > 0 {
		conf = t.confSum / float64(n)
	}
	return text, conf
}
