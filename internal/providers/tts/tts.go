package tts

import (
	"context"
	"strings"
	"time"
)

// Utterance is one synthesized prompt ready for client playback.
type Utterance struct {
	Audio    []byte
	MIME     string
	Duration time.Duration
}

// Synthesizer converts a prompt to audible speech. Synthesize must honour
// ctx cancellation so an in-flight utterance can be abandoned when the exam
// is terminated mid-prompt.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Utterance, error)
	Close() error
}

// Disabled resolves every prompt immediately with no audio, for operators
// who have switched voice output off.
type Disabled struct{}

func (Disabled) Synthesize(ctx context.Context, text string) (Utterance, error) {
	return Utterance{}, nil
}

func (Disabled) Close() error { return nil }

// EstimateDuration approximates playback time from word count at a spoken
// pace of roughly 150 words per minute.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}
	return time.Duration(words) * 400 * time.Millisecond
}
