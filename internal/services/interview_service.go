package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/lingualab/oralis/internal/audio"
	"github.com/lingualab/oralis/internal/content"
	"github.com/lingualab/oralis/internal/exam"
	"github.com/lingualab/oralis/internal/metrics"
	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/pipeline"
	"github.com/lingualab/oralis/internal/providers/llm"
	"github.com/lingualab/oralis/internal/providers/stt"
	"github.com/lingualab/oralis/internal/providers/tts"
	mongorepo "github.com/lingualab/oralis/internal/repositories/mongo"
	pgrepo "github.com/lingualab/oralis/internal/repositories/postgres"
	"github.com/lingualab/oralis/internal/storage"
	"github.com/lingualab/oralis/internal/utils"
)

// RecognizerFactory builds a fresh recognizer per session; streaming
// recognizers hold per-turn state and cannot be shared.
type RecognizerFactory func(ctx context.Context) (stt.Recognizer, error)

// InterviewService owns the session lifecycle: one engine per running
// session, plus the persistence and evaluation that follow completion.
type InterviewService struct {
	Sessions  mongorepo.SessionRepository
	Responses pgrepo.ResponseRepo
	Results   pgrepo.ResultRepo

	Scripts    *content.Loader
	Speaker    tts.Synthesizer
	Recognizer RecognizerFactory
	Embedder   llm.Provider // optional; transcript embeddings are best-effort

	Registry *Registry
	Lock     *AttemptLock   // optional cross-instance concurrency guard
	Signer   storage.Signer // optional; mints download URLs for archived clips
	Sink     exam.EventSink
	Pipeline *pipeline.Pipeline

	AudioMIME string
	Engine    exam.Config
	Logger    *logrus.Logger
}

// Start creates a session for the candidate and launches its engine. A
// candidate who already completed this test is refused.
func (s *InterviewService) Start(ctx context.Context, candidateID, testID string) (*models.InterviewSession, error) {
	const op = "InterviewService.Start"

	if candidateID == "" || testID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "candidate_id and test_id are required", nil)
	}

	script, err := s.Scripts.Load(ctx, testID)
	if err != nil {
		return nil, err
	}

	done, err := s.Sessions.HasCompleted(ctx, candidateID, testID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to check prior attempts", err)
	}
	if done {
		return nil, utils.E(utils.CodeConflict, op, "this test has already been completed", nil)
	}

	if s.Lock != nil {
		ok, err := s.Lock.Acquire(ctx, candidateID, testID)
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to acquire attempt lock", err)
		}
		if !ok {
			return nil, utils.E(utils.CodeConflict, op, "an attempt at this test is already in progress", nil)
		}
	}
	releaseLock := func(ctx context.Context) {
		if s.Lock != nil {
			_ = s.Lock.Release(ctx, candidateID, testID)
		}
	}

	session := &models.InterviewSession{
		SessionID:   uuid.NewString(),
		CandidateID: candidateID,
		TestID:      testID,
		Status:      models.StatusActive,
		Position:    models.ExamPosition{Part: models.PartIntro},
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Sessions.Create(ctx, session); err != nil {
		releaseLock(ctx)
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	recognizer, err := s.Recognizer(context.WithoutCancel(ctx))
	if err != nil {
		releaseLock(ctx)
		_ = s.Sessions.SetStatus(context.WithoutCancel(ctx), session.SessionID, models.StatusError)
		return nil, utils.E(utils.CodeUnavailable, op, "speech recognition is unavailable", err)
	}

	capture := audio.NewSession(s.audioMIME(), s.Logger)

	engine, err := exam.New(exam.Params{
		SessionID:  session.SessionID,
		Script:     script,
		Speaker:    s.Speaker,
		Recognizer: recognizer,
		Capture:    capture,
		Sink:       s.recordingSink(),
		OnComplete: s.completeFunc(session, recognizer),
		Logger:     s.Logger,
		Config:     s.Engine,
	})
	if err != nil {
		releaseLock(ctx)
		_ = recognizer.Close()
		_ = capture.Close()
		_ = s.Sessions.SetStatus(context.WithoutCancel(ctx), session.SessionID, models.StatusError)
		return nil, utils.E(utils.CodeInternal, op, "failed to assemble interview engine", err)
	}

	s.Registry.Put(session.SessionID, engine)
	metrics.SessionsStarted.Inc()

	go func() {
		defer s.Registry.Remove(session.SessionID)
		defer releaseLock(context.Background())
		if err := engine.Run(context.Background()); err != nil {
			metrics.SessionsCompleted.WithLabelValues(models.StatusError).Inc()
			_ = s.Sessions.SetStatus(context.Background(), session.SessionID, models.StatusError)
			_ = recognizer.Close()
		}
	}()

	return session, nil
}

// Get returns the live snapshot when the engine is still running, or the
// persisted record once it has finished.
func (s *InterviewService) Get(ctx context.Context, sessionID string) (*models.InterviewSession, *exam.Snapshot, error) {
	const op = "InterviewService.Get"

	session, err := s.Sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}

	if engine, ok := s.Registry.Get(sessionID); ok {
		snap := engine.Snapshot()
		return session, &snap, nil
	}
	return session, nil, nil
}

// End terminates a running session immediately. Ending a session that has
// already finished is not an error.
func (s *InterviewService) End(ctx context.Context, sessionID string) error {
	const op = "InterviewService.End"

	if engine, ok := s.Registry.Get(sessionID); ok {
		engine.EndNow()
		return nil
	}
	if _, err := s.Sessions.GetBySessionID(ctx, sessionID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	return nil
}

// Signal forwards a candidate signal to the running engine.
func (s *InterviewService) Signal(sessionID string, sig exam.Signal) error {
	engine, ok := s.Registry.Get(sessionID)
	if !ok {
		return utils.E(utils.CodeNotFound, "InterviewService.Signal", "no running session", nil)
	}
	engine.Signal(sig)
	return nil
}

// Feed forwards one audio frame to the running engine. Frames for finished
// sessions are dropped silently; the socket may outlive the protocol.
func (s *InterviewService) Feed(sessionID string, frame []byte) {
	if engine, ok := s.Registry.Get(sessionID); ok {
		engine.Feed(frame)
	}
}

// Report is the finished session's outcome: the evaluator's verdict plus
// the transcribed turns behind it.
type Report struct {
	Evaluation *models.EvaluationResult `json:"evaluation"`
	Responses  []models.ResponseLog     `json:"responses"`
}

// Report returns the persisted evaluation and response log for a finished
// session.
func (s *InterviewService) Report(ctx context.Context, sessionID string) (*Report, error) {
	const op = "InterviewService.Report"

	result, err := s.Results.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "no evaluation for this session yet", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load evaluation", err)
	}

	responses, err := s.Responses.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load response log", err)
	}

	return &Report{Evaluation: result, Responses: responses}, nil
}

// Recording returns one finalized clip of a running session, or a signed
// download URL for its archived copy once the engine is gone. The in-memory
// clip is the candidate's fallback when uploads fail.
func (s *InterviewService) Recording(ctx context.Context, sessionID, label string) (audio.Clip, string, error) {
	const op = "InterviewService.Recording"

	if engine, ok := s.Registry.Get(sessionID); ok {
		for _, clip := range engine.Clips() {
			if clip.Label == label {
				return clip, "", nil
			}
		}
		return audio.Clip{}, "", utils.E(utils.CodeNotFound, op, "no such recording", nil)
	}

	session, err := s.Sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return audio.Clip{}, "", utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return audio.Clip{}, "", utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	for _, seg := range session.Segments {
		if seg.Label != label || seg.StoredURL == "" {
			continue
		}
		if s.Signer == nil {
			return audio.Clip{}, "", utils.E(utils.CodeUnavailable, op, "recording archive is not configured", nil)
		}
		url, err := s.Signer.SignedGetURL(ctx, "recordings/"+sessionID+"/"+label, 15*time.Minute)
		if err != nil {
			return audio.Clip{}, "", utils.E(utils.CodeUnavailable, op, "failed to sign download url", err)
		}
		return audio.Clip{}, url, nil
	}
	return audio.Clip{}, "", utils.E(utils.CodeNotFound, op, "no such recording", nil)
}

// recordingSink tees engine events into Mongo so segment and position state
// survives a restart, then forwards them to the relay.
func (s *InterviewService) recordingSink() exam.EventSink {
	var (
		turnMu    sync.Mutex
		turnStart time.Time
	)
	return exam.SinkFunc(func(ctx context.Context, sessionID string, ev exam.Event) {
		switch ev.Type {
		case exam.EventState:
			if ev.State == exam.StateListening {
				turnMu.Lock()
				turnStart = time.Now()
				turnMu.Unlock()
			}
		case exam.EventTranscript:
			turnMu.Lock()
			if !turnStart.IsZero() {
				metrics.TurnDuration.Observe(time.Since(turnStart).Seconds())
				turnStart = time.Time{}
			}
			turnMu.Unlock()
		case exam.EventPosition:
			_ = s.Sessions.UpdatePosition(ctx, sessionID, models.ExamPosition{Part: ev.Part, Question: ev.QuestionIndex})
		case exam.EventSegment:
			metrics.SegmentsFinalized.WithLabelValues(ev.Label).Inc()
			_ = s.Sessions.AppendSegment(ctx, sessionID, models.SegmentMeta{
				Label:       ev.Label,
				Status:      models.SegmentFinalized,
				FinalizedAt: time.Now().UTC(),
			})
		}
		s.Sink.Emit(ctx, sessionID, ev)
	})
}

// completeFunc is the post-session tail: upload and score the clips, persist
// transcripts and the verdict, mark the session complete, and announce the
// report. Every step after the pipeline is best-effort.
func (s *InterviewService) completeFunc(session *models.InterviewSession, recognizer stt.Recognizer) exam.CompleteFunc {
	startedAt := time.Now().UTC()

	return func(ctx context.Context, clips []audio.Clip, responses []models.ResponseEntry) {
		defer recognizer.Close()

		log := s.log().WithFields(logrus.Fields{"session_id": session.SessionID, "test_id": session.TestID})

		out := s.Pipeline.Process(ctx, session.TestID, session.SessionID, clips, responses)

		for label, url := range out.StoredURLs {
			if err := s.Sessions.SetSegmentURL(ctx, session.SessionID, label, url); err != nil {
				log.WithError(err).WithField("label", label).Warn("failed to record segment url")
			}
		}

		s.persistResponses(ctx, session.SessionID, responses)
		if out.Evaluation != nil {
			s.persistEvaluation(ctx, session, out)
		}

		endedAt := time.Now().UTC()
		duration := int64(endedAt.Sub(startedAt).Seconds())
		if err := s.Sessions.Complete(ctx, session.SessionID, endedAt, duration, out.ReportID); err != nil {
			log.WithError(err).Error("failed to mark session complete")
		}
		metrics.SessionsCompleted.WithLabelValues(models.StatusCompleted).Inc()

		if out.ReportID != "" {
			s.Sink.Emit(ctx, session.SessionID, exam.Event{Type: exam.EventReport, ReportID: out.ReportID})
		}
		log.WithFields(logrus.Fields{
			"clips":           len(clips),
			"upload_failures": out.UploadFailures,
			"scored":          out.Evaluation != nil,
		}).Info("session pipeline finished")
	}
}

func (s *InterviewService) persistResponses(ctx context.Context, sessionID string, responses []models.ResponseEntry) {
	for _, r := range responses {
		if r.Transcript == "" {
			continue
		}
		row := &models.ResponseLog{
			ID:            uuid.NewString(),
			SessionID:     sessionID,
			Part:          string(r.Part),
			QuestionIndex: r.QuestionIndex,
			Transcript:    r.Transcript,
			Confidence:    r.Confidence,
			CreatedAt:     time.Now().UTC(),
		}
		if s.Embedder != nil {
			if vec, err := s.Embedder.Embed(ctx, r.Transcript); err == nil && len(vec) > 0 {
				row.Embedding = pgvector.NewVector(vec)
			}
		}
		if err := s.Responses.Insert(ctx, row); err != nil {
			s.log().WithError(err).WithField("session_id", sessionID).Warn("failed to persist response log")
		}
	}
}

func (s *InterviewService) persistEvaluation(ctx context.Context, session *models.InterviewSession, out pipeline.Outcome) {
	ev := out.Evaluation

	partBands, _ := json.Marshal(ev.PartBands)
	raw, _ := json.Marshal(ev)

	row := &models.EvaluationResult{
		ID:            uuid.NewString(),
		SessionID:     session.SessionID,
		TestID:        session.TestID,
		OverallBand:   ev.OverallBand,
		PartBands:     datatypes.JSON(partBands),
		Fluency:       ev.Fluency,
		Lexical:       ev.Lexical,
		Grammar:       ev.Grammar,
		Pronunciation: ev.Pronunciation,
		Strengths:     ev.Strengths,
		Improvements:  ev.Improvements,
		RawFeedback:   datatypes.JSON(raw),
		ReportID:      out.ReportID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Results.Insert(ctx, row); err != nil {
		s.log().WithError(err).WithField("session_id", session.SessionID).Warn("failed to persist evaluation")
	}
}

func (s *InterviewService) audioMIME() string {
	if s.AudioMIME != "" {
		return s.AudioMIME
	}
	return "audio/webm"
}

func (s *InterviewService) log() *logrus.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logrus.New()
}
