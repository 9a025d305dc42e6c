// Package exam drives the spoken-interview protocol: a fixed introduction,
// two question-and-answer parts, and a timed long turn, alternating machine
// speech with candidate speech capture.
package exam

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lingualab/oralis/internal/audio"
	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/providers/stt"
	"github.com/lingualab/oralis/internal/providers/tts"
)

// Fixed script lines spoken around the Part 2 long turn and at the end.
const (
	prepLine    = "You have one minute to prepare. You may make notes if you wish."
	beginLine   = "All right? Remember you have up to two minutes for this. Please start speaking now."
	closingLine = "That is the end of the speaking test. Thank you."
)

// errEnded signals manual termination; it is an exit path, not a failure.
var errEnded = errors.New("interview ended by operator")

// Config holds the protocol timing windows. Zero values take the exam
// defaults; tests inject short windows.
type Config struct {
	PrepWindow   time.Duration // Part 2 preparation, default 1m
	SpeakWindow  time.Duration // Part 2 long turn, default 2m
	SettlePause  time.Duration // pause between begin line and capture, default 1s
	AdvancePause time.Duration // pause after no-response intro lines, default 1.5s
	TickInterval time.Duration // countdown resolution, default 1s
}

func (c *Config) applyDefaults() {
	if c.PrepWindow <= 0 {
		c.PrepWindow = time.Minute
	}
	if c.SpeakWindow <= 0 {
		c.SpeakWindow = 2 * time.Minute
	}
	if c.SettlePause <= 0 {
		c.SettlePause = time.Second
	}
	if c.AdvancePause <= 0 {
		c.AdvancePause = 1500 * time.Millisecond
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
}

// CompleteFunc receives the finalized clips and the response log once the
// session reaches completed. Runs on its own goroutine with a detached
// context.
type CompleteFunc func(ctx context.Context, clips []audio.Clip, responses []models.ResponseEntry)

// Params wires one engine instance. All fields except Logger, Config, and
// OnComplete are required.
type Params struct {
	SessionID  string
	Script     *models.ExamScript
	Speaker    tts.Synthesizer
	Recognizer stt.Recognizer
	Capture    *audio.Session
	Sink       EventSink
	OnComplete CompleteFunc
	Logger     *logrus.Logger
	Config     Config
}

// Engine runs one interview session. The protocol is a single goroutine;
// candidate signals and audio frames arrive from the connection handler and
// are consumed at the protocol's suspension points, so exactly one turn is
// in flight at any instant.
type Engine struct {
	sessionID  string
	script     *models.ExamScript
	speaker    tts.Synthesizer
	recognizer stt.Recognizer
	capture    *audio.Session
	sink       EventSink
	onComplete CompleteFunc
	log        *logrus.Entry
	cfg        Config

	mu        sync.Mutex
	state     State
	pos       models.ExamPosition
	responses []models.ResponseEntry
	longTurn  *models.ResponseEntry // Part 2 transcript; not in the question-keyed log
	clips     []audio.Clip
	startedAt time.Time
	endedAt   time.Time

	listening atomic.Bool

	sigCh   chan Signal
	endCh   chan struct{}
	endOnce sync.Once
	doneCh  chan struct{}
}

func New(p Params) (*Engine, error) {
	if p.SessionID == "" {
		return nil, errors.New("exam.New: SessionID is required")
	}
	if p.Speaker == nil || p.Recognizer == nil || p.Capture == nil || p.Sink == nil {
		return nil, errors.New("exam.New: Speaker/Recognizer/Capture/Sink must be set")
	}
	if err := p.Script.Validate(); err != nil {
		return nil, err
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	p.Config.applyDefaults()

	return &Engine{
		sessionID:  p.SessionID,
		script:     p.Script,
		speaker:    p.Speaker,
		recognizer: p.Recognizer,
		capture:    p.Capture,
		sink:       p.Sink,
		onComplete: p.OnComplete,
		log:        p.Logger.WithField("session_id", p.SessionID),
		cfg:        p.Config,
		state:      StateIdle,
		pos:        models.ExamPosition{Part: models.PartIntro},
		sigCh:      make(chan Signal, 4),
		endCh:      make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Run executes the full protocol. It returns nil on completion (normal or
// manually terminated) and an error only when the session ends in the error
// state.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.doneCh)
	defer func() { _ = e.capture.Close() }()

	e.mu.Lock()
	e.startedAt = time.Now().UTC()
	e.mu.Unlock()

	e.transition(ctx, StateConnecting)

	err := e.runScript(ctx)
	switch {
	case err == nil:
		// Closing line; manual termination during it still completes.
		if serr := e.speak(ctx, closingLine); serr != nil && !errors.Is(serr, errEnded) {
			e.log.WithError(serr).Warn("closing line failed")
		}
	case errors.Is(err, errEnded):
		e.finalizePartial(ctx)
	default:
		e.fail(ctx, err)
		return err
	}

	e.complete(ctx)
	return nil
}

// Signal delivers a candidate/operator signal. Safe from any goroutine;
// signals no suspension point is waiting for are dropped.
func (e *Engine) Signal(sig Signal) {
	if sig == SignalEndNow {
		e.EndNow()
		return
	}
	select {
	case e.sigCh <- sig:
	default:
	}
}

// EndNow forces immediate completion: in-flight speech and capture are
// cancelled, the open segment is finalized once under a partial label, and
// no further prompts are spoken. Idempotent.
func (e *Engine) EndNow() {
	e.endOnce.Do(func() { close(e.endCh) })
}

// Feed delivers one audio frame from the candidate's connection. The frame
// always reaches the capture session (which drops it unless a segment is
// recording) and reaches the recognizer only while a turn is listening.
func (e *Engine) Feed(frame []byte) {
	e.capture.Feed(frame)
	if e.listening.Load() {
		e.recognizer.SendAudio(frame)
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} { return e.doneCh }

// Snapshot is a point-in-time view of the session for the API layer.
type Snapshot struct {
	State     State                  `json:"state"`
	Position  models.ExamPosition    `json:"position"`
	Responses []models.ResponseEntry `json:"responses"`
	Segments  []models.SegmentMeta   `json:"segments"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   time.Time              `json:"ended_at,omitempty"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	segs := make([]models.SegmentMeta, 0, len(e.clips))
	for _, c := range e.clips {
		segs = append(segs, models.SegmentMeta{
			Label:       c.Label,
			SizeBytes:   len(c.Data),
			Status:      models.SegmentFinalized,
			FinalizedAt: c.FinalizedAt,
		})
	}
	return Snapshot{
		State:     e.state,
		Position:  e.pos,
		Responses: append([]models.ResponseEntry(nil), e.responses...),
		Segments:  segs,
		StartedAt: e.startedAt,
		EndedAt:   e.endedAt,
	}
}

// Clips returns the finalized segments captured so far. The slice is shared
// with the engine and must be treated as read-only; it is the candidate's
// local fallback when uploads fail.
func (e *Engine) Clips() []audio.Clip {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]audio.Clip(nil), e.clips...)
}

// ---- protocol ----

func (e *Engine) runScript(ctx context.Context) error {
	if err := e.runIntro(ctx); err != nil {
		return err
	}
	if err := e.runQuestionPart(ctx, models.PartOne); err != nil {
		return err
	}
	if err := e.runPartTwo(ctx); err != nil {
		return err
	}
	return e.runQuestionPart(ctx, models.PartThree)
}

func (e *Engine) runIntro(ctx context.Context) error {
	if err := e.openSegment(ctx, models.PartIntro); err != nil {
		return err
	}

	for i, step := range e.script.Intro {
		e.setPosition(ctx, models.PartIntro, i)
		if err := e.speak(ctx, step.Text); err != nil {
			return err
		}
		if step.ExpectsResponse {
			entry, err := e.listenTurn(ctx, models.PartIntro, i)
			if err != nil {
				return err
			}
			e.logResponse(ctx, entry)
		} else if err := e.wait(ctx, e.cfg.AdvancePause); err != nil {
			return err
		}
	}

	return e.finalizeSegment(ctx)
}

func (e *Engine) runQuestionPart(ctx context.Context, part models.Part) error {
	if err := e.openSegment(ctx, part); err != nil {
		return err
	}

	for i, q := range e.script.Questions(part) {
		e.setPosition(ctx, part, i)
		if err := e.speak(ctx, q); err != nil {
			return err
		}
		entry, err := e.listenTurn(ctx, part, i)
		if err != nil {
			return err
		}
		e.logResponse(ctx, entry)
	}

	return e.finalizeSegment(ctx)
}

func (e *Engine) runPartTwo(ctx context.Context) error {
	if err := e.openSegment(ctx, models.PartTwo); err != nil {
		return err
	}
	e.setPosition(ctx, models.PartTwo, 0)

	if err := e.speak(ctx, e.cueCardText()); err != nil {
		return err
	}
	if err := e.speak(ctx, prepLine); err != nil {
		return err
	}

	// Preparation window; the candidate may start early. Stopping the
	// countdown before leaving guarantees its completion path cannot fire a
	// second transition into the speaking phase.
	prep := startCountdown(e.cfg.PrepWindow, e.cfg.TickInterval, e.timerTick(ctx))
	err := e.await(ctx, SignalSkipPreparation, prep.Done(), nil)
	prep.Stop()
	if err != nil {
		return err
	}

	if err := e.speak(ctx, beginLine); err != nil {
		return err
	}
	if err := e.wait(ctx, e.cfg.SettlePause); err != nil {
		return err
	}

	// Speaking window with recording and capture. Candidate signal and
	// timer expiry converge on the same finalize path below, so the segment
	// closes exactly once whichever fires first.
	tr := newTranscript(e.interimTick(ctx, models.PartTwo, 0))
	if err := e.recognizer.Start(ctx, tr); err != nil {
		return err
	}
	if err := e.capture.Resume(); err != nil {
		return err
	}
	e.listening.Store(true)
	e.transition(ctx, StateListening)

	speakT := startCountdown(e.cfg.SpeakWindow, e.cfg.TickInterval, e.timerTick(ctx))
	err = e.await(ctx, SignalResponseDone, speakT.Done(), tr.errCh)
	speakT.Stop()

	e.listening.Store(false)
	_ = e.capture.Pause()
	_ = e.recognizer.Stop()
	if err != nil {
		return err
	}

	text, conf := tr.Result()
	e.emit(ctx, Event{Type: EventTranscript, Part: models.PartTwo, Text: text, Confidence: conf})
	e.mu.Lock()
	e.longTurn = &models.ResponseEntry{Part: models.PartTwo, Transcript: text, Confidence: conf}
	e.mu.Unlock()

	return e.finalizeSegment(ctx)
}

// ---- turn primitives ----

// speak synthesizes and "plays" one prompt, resolving when playback ends.
// Manual termination cancels the in-flight utterance; synthesis failure is
// absorbed (the prompt text event has already been delivered).
func (e *Engine) speak(ctx context.Context, text string) error {
	e.transition(ctx, StateSpeaking)
	e.emit(ctx, Event{Type: EventPrompt, Part: e.part(), QuestionIndex: e.question(), Text: text})

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		utt tts.Utterance
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		u, err := e.speaker.Synthesize(sctx, text)
		resCh <- result{u, err}
	}()

	var utt tts.Utterance
	select {
	case r := <-resCh:
		if r.err != nil {
			e.log.WithError(r.err).Warn("speech synthesis failed, continuing with text prompt")
		} else {
			utt = r.utt
		}
	case <-e.endCh:
		cancel()
		return errEnded
	case <-ctx.Done():
		return ctx.Err()
	}

	if len(utt.Audio) > 0 {
		e.emit(ctx, Event{
			Type:        EventPromptAudio,
			AudioBase64: base64.StdEncoding.EncodeToString(utt.Audio),
			AudioMIME:   utt.MIME,
		})
	}
	return e.wait(ctx, utt.Duration)
}

// listenTurn captures one spoken answer: capture resumes, the recognizer
// streams, and the turn closes on the candidate's done signal. Capture
// always stops before the method returns, ended or not.
func (e *Engine) listenTurn(ctx context.Context, part models.Part, question int) (models.ResponseEntry, error) {
	tr := newTranscript(e.interimTick(ctx, part, question))
	if err := e.recognizer.Start(ctx, tr); err != nil {
		return models.ResponseEntry{}, err
	}
	if err := e.capture.Resume(); err != nil {
		return models.ResponseEntry{}, err
	}
	e.listening.Store(true)
	e.transition(ctx, StateListening)

	err := e.await(ctx, SignalResponseDone, nil, tr.errCh)

	e.listening.Store(false)
	_ = e.capture.Pause()
	_ = e.recognizer.Stop()
	if err != nil {
		return models.ResponseEntry{}, err
	}

	text, conf := tr.Result()
	e.emit(ctx, Event{Type: EventTranscript, Part: part, QuestionIndex: question, Text: text, Confidence: conf})
	return models.ResponseEntry{Part: part, QuestionIndex: question, Transcript: text, Confidence: conf}, nil
}

// await suspends until the accepted signal arrives, the optional timer
// elapses, capture fails unrecoverably, or the session is terminated.
// Signal and timer converge on the same nil return.
func (e *Engine) await(ctx context.Context, accept Signal, timerDone <-chan struct{}, errCh <-chan error) error {
	for {
		select {
		case sig := <-e.sigCh:
			if sig == accept {
				return nil
			}
			// A stale signal from a previous suspension point; drop it.
		case <-timerDone:
			return nil
		case err := <-errCh:
			return err
		case <-e.endCh:
			return errEnded
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-e.endCh:
		return errEnded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---- segments ----

// openSegment opens the part's segment and immediately pauses it, so only
// listening turns contribute audio.
func (e *Engine) openSegment(ctx context.Context, part models.Part) error {
	if err := e.capture.Open(part.Label()); err != nil {
		return err
	}
	return e.capture.Pause()
}

// finalizeSegment flushes and closes the open segment, then records the
// clip. The engine never advances past this point until the flush has
// settled.
func (e *Engine) finalizeSegment(ctx context.Context) error {
	e.transition(ctx, StateProcessing)

	clip, err := e.capture.Finalize(ctx)
	if err != nil {
		return err
	}
	e.addClip(ctx, clip)
	return nil
}

// finalizePartial closes whatever segment is open under a partial label.
// Called exactly once, on the manual-termination path.
func (e *Engine) finalizePartial(ctx context.Context) {
	clip, err := e.capture.Finalize(context.WithoutCancel(ctx))
	if err != nil {
		if !errors.Is(err, audio.ErrNoOpenSegment) {
			e.log.WithError(err).Warn("finalizing partial segment failed")
		}
		return
	}
	clip.Label += " (partial)"
	e.addClip(ctx, clip)
}

func (e *Engine) addClip(ctx context.Context, clip audio.Clip) {
	e.mu.Lock()
	e.clips = append(e.clips, clip)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"label": clip.Label, "bytes": len(clip.Data)}).Info("segment finalized")
	e.emit(ctx, Event{Type: EventSegment, Label: clip.Label})
}

// ---- terminal states ----

func (e *Engine) complete(ctx context.Context) {
	e.mu.Lock()
	e.endedAt = time.Now().UTC()
	clips := append([]audio.Clip(nil), e.clips...)
	// The Part 2 long turn sits outside the question-keyed log but its
	// transcript still reaches the evaluator.
	responses := append([]models.ResponseEntry(nil), e.responses...)
	if e.longTurn != nil {
		responses = append(responses, *e.longTurn)
	}
	e.mu.Unlock()

	e.transition(ctx, StateCompleted)
	e.emit(ctx, Event{Type: EventCompleted})

	if e.onComplete != nil {
		go e.onComplete(context.WithoutCancel(ctx), clips, responses)
	}
}

func (e *Engine) fail(ctx context.Context, err error) {
	e.log.WithError(err).Error("interview failed")
	e.transition(ctx, StateError)
	e.emit(ctx, Event{Type: EventError, Message: err.Error()})
}

// ---- bookkeeping ----

func (e *Engine) transition(ctx context.Context, st State) {
	e.mu.Lock()
	if e.state == st {
		e.mu.Unlock()
		return
	}
	e.state = st
	e.mu.Unlock()

	e.log.WithField("state", st).Debug("state transition")
	e.emit(ctx, Event{Type: EventState, State: st})
}

func (e *Engine) setPosition(ctx context.Context, part models.Part, question int) {
	e.mu.Lock()
	e.pos = models.ExamPosition{Part: part, Question: question}
	e.mu.Unlock()

	e.emit(ctx, Event{Type: EventPosition, Part: part, QuestionIndex: question})
}

func (e *Engine) logResponse(ctx context.Context, entry models.ResponseEntry) {
	e.mu.Lock()
	e.responses = append(e.responses, entry)
	e.mu.Unlock()
}

func (e *Engine) part() models.Part {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos.Part
}

func (e *Engine) question() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos.Question
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	e.sink.Emit(ctx, e.sessionID, ev)
}

func (e *Engine) timerTick(ctx context.Context) func(time.Duration) {
	return func(remaining time.Duration) {
		e.emit(ctx, Event{Type: EventTimer, SecondsLeft: int(remaining.Round(time.Second).Seconds())})
	}
}

func (e *Engine) interimTick(ctx context.Context, part models.Part, question int) func(string) {
	return func(text string) {
		e.emit(ctx, Event{Type: EventInterim, Part: part, QuestionIndex: question, Text: text})
	}
}

func (e *Engine) cueCardText() string {
	cue := e.script.Part2
	text := cue.Topic
	for _, p := range cue.Points {
		text += "\n- " + p
	}
	return text
}
