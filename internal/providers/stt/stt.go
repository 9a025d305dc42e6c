package stt

import "context"

// Callback receives transcript results while a turn is being captured.
type Callback interface {
	// OnInterim is called with the best-effort transcript so far; later
	// interims replace earlier ones.
	OnInterim(text string)

	// OnFinal is called when a stretch of speech is finalized. Final text
	// is append-only for the current turn.
	OnFinal(text string, confidence float64)

	// OnError is called on an unrecoverable capture failure. Transient
	// stream resets are recovered internally and never reported here.
	OnError(err error)
}

// Recognizer is a streaming speech-to-text channel for one exam session.
// Start/Stop bracket a single turn; SendAudio between them feeds candidate
// audio. SendAudio outside a turn is a no-op, so a frame racing a turn
// boundary can never bleed into the next turn's transcript.
type Recognizer interface {
	Start(ctx context.Context, cb Callback) error
	SendAudio(frame []byte)
	Stop() error
	Close() error
}
