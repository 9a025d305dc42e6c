package exam

import (
	"context"

	"github.com/lingualab/oralis/internal/models"
)

// State is the engine's protocol state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateSpeaking   State = "speaking"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Signal is a candidate/operator input delivered to a running engine.
type Signal string

const (
	// SignalResponseDone marks the current spoken turn as finished.
	SignalResponseDone Signal = "response_done"
	// SignalSkipPreparation starts the Part 2 long turn before the
	// preparation window elapses.
	SignalSkipPreparation Signal = "skip_preparation"
	// SignalEndNow forces immediate completion from any active state.
	SignalEndNow Signal = "end_now"
)

// Event types emitted on the session event stream.
const (
	EventState       = "state"
	EventPosition    = "position"
	EventPrompt      = "prompt"
	EventPromptAudio = "prompt_audio"
	EventInterim     = "interim"
	EventTranscript  = "transcript"
	EventTimer       = "timer"
	EventSegment     = "segment_finalized"
	EventCompleted   = "completed"
	EventReport      = "report_ready"
	EventError       = "error"
)

// Event is one message on a session's event stream.
type Event struct {
	Type          string      `json:"type"`
	State         State       `json:"state,omitempty"`
	Part          models.Part `json:"part,omitempty"`
	QuestionIndex int         `json:"question_index"`
	Text          string      `json:"text,omitempty"`
	AudioBase64   string      `json:"audio_base64,omitempty"`
	AudioMIME     string      `json:"audio_mime,omitempty"`
	SecondsLeft   int         `json:"seconds_left,omitempty"`
	Label         string      `json:"label,omitempty"`
	Confidence    float64     `json:"confidence,omitempty"`
	ReportID      string      `json:"report_id,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// EventSink receives engine events for delivery to the candidate (and any
// observers). Implementations must not block the protocol for long.
type EventSink interface {
	Emit(ctx context.Context, sessionID string, ev Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, sessionID string, ev Event)

func (f SinkFunc) Emit(ctx context.Context, sessionID string, ev Event) { f(ctx, sessionID, ev) }
