package exam

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lingualab/oralis/internal/audio"
	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/providers/stt"
	"github.com/lingualab/oralis/internal/providers/tts"
)

// stubSpeaker resolves instantly with a byte of audio so tests never wait on
// playback.
type stubSpeaker struct{}

func (stubSpeaker) Synthesize(ctx context.Context, text string) (tts.Utterance, error) {
	return tts.Utterance{Audio: []byte{1}, MIME: "audio/mpeg"}, nil
}

func (stubSpeaker) Close() error { return nil }

// fakeRecognizer finalizes one stretch of text per audio frame received.
type fakeRecognizer struct {
	mu   sync.Mutex
	cb   stt.Callback
	turn int
}

func (f *fakeRecognizer) Start(ctx context.Context, cb stt.Callback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
	f.turn++
	return nil
}

func (f *fakeRecognizer) SendAudio(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cb != nil {
		f.cb.OnFinal(fmt.Sprintf("answer %d", f.turn), 0.9)
	}
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = nil
	return nil
}

func (f *fakeRecognizer) Close() error { return nil }

func testScript() *models.ExamScript {
	return &models.ExamScript{
		TestID: "test-1",
		Title:  "General Speaking",
		Intro: []models.IntroStep{
			{Text: "Good morning. This test is recorded."},
			{Text: "Can you tell me your full name, please?", ExpectsResponse: true},
		},
		Part1: []string{"Do you work or study?", "What do you enjoy about it?"},
		Part2: models.CueCard{
			Topic:  "Describe a place you like to visit.",
			Points: []string{"where it is", "how often you go there"},
		},
		Part3: []string{"Why do people enjoy travelling?", "Has tourism changed your country?"},
	}
}

func fastConfig() Config {
	return Config{
		PrepWindow:   40 * time.Millisecond,
		SpeakWindow:  80 * time.Millisecond,
		SettlePause:  time.Millisecond,
		AdvancePause: time.Millisecond,
		TickInterval: 10 * time.Millisecond,
	}
}

type harness struct {
	eng    *Engine
	events chan Event
	runErr chan error
}

func startEngine(t *testing.T, cfg Config, onComplete CompleteFunc) *harness {
	t.Helper()

	events := make(chan Event, 4096)
	eng, err := New(Params{
		SessionID:  "sess-test",
		Script:     testScript(),
		Speaker:    stubSpeaker{},
		Recognizer: &fakeRecognizer{},
		Capture:    audio.NewSession("audio/webm", nil),
		Sink: SinkFunc(func(ctx context.Context, sessionID string, ev Event) {
			select {
			case events <- ev:
			default:
			}
		}),
		OnComplete: onComplete,
		Config:     cfg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(context.Background()) }()

	return &harness{eng: eng, events: events, runErr: runErr}
}

func (h *harness) waitErr(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.runErr:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not finish in time")
		return nil
	}
}

// drive pumps events until the session completes, invoking onEvent for each.
// onEvent returning false suppresses the default answer for a listening turn.
func (h *harness) drive(t *testing.T, onEvent func(ev Event) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-h.events:
			answer := true
			if onEvent != nil {
				answer = onEvent(ev)
			}
			if ev.Type == EventCompleted {
				return
			}
			if ev.Type == EventState && ev.State == StateListening && answer {
				h.eng.Feed([]byte("frame"))
				h.eng.Signal(SignalResponseDone)
			}
		case <-deadline:
			t.Fatal("session did not complete in time")
		}
	}
}

func TestEngineFullRun(t *testing.T) {
	done := make(chan struct {
		clips     []audio.Clip
		responses []models.ResponseEntry
	}, 1)

	h := startEngine(t, fastConfig(), func(ctx context.Context, clips []audio.Clip, responses []models.ResponseEntry) {
		done <- struct {
			clips     []audio.Clip
			responses []models.ResponseEntry
		}{clips, responses}
	})
	h.drive(t, nil)

	if err := h.waitErr(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	snap := h.eng.Snapshot()
	if snap.State != StateCompleted {
		t.Fatalf("state = %q, want %q", snap.State, StateCompleted)
	}
	// One intro answer, two Part 1 answers, two Part 3 answers; the Part 2
	// long turn sits outside the question-keyed log.
	if got := len(snap.Responses); got != 5 {
		t.Fatalf("responses = %d, want 5", got)
	}
	wantPos := models.ExamPosition{Part: models.PartThree, Question: 1}
	if snap.Position != wantPos {
		t.Fatalf("position = %+v, want %+v", snap.Position, wantPos)
	}

	clips := h.eng.Clips()
	wantLabels := []string{"Introduction", "Part 1", "Part 2", "Part 3"}
	if len(clips) != len(wantLabels) {
		t.Fatalf("clips = %d, want %d", len(clips), len(wantLabels))
	}
	for i, want := range wantLabels {
		if clips[i].Label != want {
			t.Errorf("clip[%d].Label = %q, want %q", i, clips[i].Label, want)
		}
		if len(clips[i].Data) == 0 {
			t.Errorf("clip[%d] (%s) has no audio", i, want)
		}
		if clips[i].FinalizedAt.IsZero() {
			t.Errorf("clip[%d] (%s) has no finalized timestamp", i, want)
		}
	}

	select {
	case out := <-done:
		if len(out.clips) != 4 || len(out.responses) != 6 {
			t.Fatalf("completion callback got %d clips / %d responses, want 4 / 6 (log plus long turn)", len(out.clips), len(out.responses))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never ran")
	}
}

func TestEngineManualTermination(t *testing.T) {
	h := startEngine(t, fastConfig(), nil)

	listens := 0
	h.drive(t, func(ev Event) bool {
		if ev.Type == EventState && ev.State == StateListening {
			listens++
			if listens == 2 {
				// Second listening turn is the first Part 1 question; end the
				// session mid-answer.
				h.eng.EndNow()
				return false
			}
		}
		return true
	})

	if err := h.waitErr(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	snap := h.eng.Snapshot()
	if snap.State != StateCompleted {
		t.Fatalf("state = %q, want %q", snap.State, StateCompleted)
	}

	clips := h.eng.Clips()
	if len(clips) != 2 {
		t.Fatalf("clips = %d, want 2", len(clips))
	}
	if clips[0].Label != "Introduction" {
		t.Errorf("clip[0].Label = %q, want %q", clips[0].Label, "Introduction")
	}
	if want := "Part 1 (partial)"; clips[1].Label != want {
		t.Errorf("clip[1].Label = %q, want %q", clips[1].Label, want)
	}
}

func TestEngineEndNowIdempotent(t *testing.T) {
	h := startEngine(t, fastConfig(), nil)

	h.eng.EndNow()
	h.eng.EndNow()
	h.eng.Signal(SignalEndNow)

	if err := h.waitErr(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if st := h.eng.Snapshot().State; st != StateCompleted {
		t.Fatalf("state = %q, want %q", st, StateCompleted)
	}
}

func TestEngineSkipPreparation(t *testing.T) {
	h := startEngine(t, fastConfig(), nil)

	beginLines := 0
	h.drive(t, func(ev Event) bool {
		if ev.Type == EventPrompt {
			switch ev.Text {
			case prepLine:
				h.eng.Signal(SignalSkipPreparation)
			case beginLine:
				beginLines++
			}
		}
		return true
	})

	if err := h.waitErr(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if beginLines != 1 {
		t.Fatalf("begin line spoken %d times, want exactly once", beginLines)
	}
}

func TestEnginePartTwoTimerExpiry(t *testing.T) {
	h := startEngine(t, fastConfig(), nil)

	part := models.PartIntro
	segFinalized := map[string]int{}
	h.drive(t, func(ev Event) bool {
		switch ev.Type {
		case EventPosition:
			part = ev.Part
		case EventSegment:
			segFinalized[ev.Label]++
		}
		// During Part 2 the candidate keeps talking until the window
		// elapses; the engine must close the segment on its own.
		if ev.Type == EventState && ev.State == StateListening && part == models.PartTwo {
			h.eng.Feed([]byte("frame"))
			return false
		}
		return true
	})

	if err := h.waitErr(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := segFinalized["Part 2"]; got != 1 {
		t.Fatalf("Part 2 finalized %d times, want exactly once", got)
	}
	if got := len(h.eng.Clips()); got != 4 {
		t.Fatalf("clips = %d, want 4", got)
	}
}

func TestEngineTranscriptEvents(t *testing.T) {
	h := startEngine(t, fastConfig(), nil)

	var transcripts []string
	h.drive(t, func(ev Event) bool {
		if ev.Type == EventTranscript {
			transcripts = append(transcripts, ev.Text)
		}
		return true
	})

	if err := h.waitErr(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(transcripts) != 6 {
		t.Fatalf("transcript events = %d, want 6", len(transcripts))
	}
	for i, text := range transcripts {
		if !strings.HasPrefix(text, "answer ") {
			t.Errorf("transcript[%d] = %q, want recognized text", i, text)
		}
	}
}

func TestNewValidation(t *testing.T) {
	script := testScript()
	base := Params{
		SessionID:  "s",
		Script:     script,
		Speaker:    stubSpeaker{},
		Recognizer: &fakeRecognizer{},
		Capture:    audio.NewSession("audio/webm", nil),
		Sink:       SinkFunc(func(context.Context, string, Event) {}),
	}

	missingID := base
	missingID.SessionID = ""
	if _, err := New(missingID); err == nil {
		t.Error("New accepted empty session id")
	}

	missingSink := base
	missingSink.Sink = nil
	if _, err := New(missingSink); err == nil {
		t.Error("New accepted nil sink")
	}

	badScript := base
	badScript.Script = &models.ExamScript{TestID: "x"}
	if _, err := New(badScript); err == nil {
		t.Error("New accepted incomplete script")
	}
}
