// Package pipeline takes a completed session's finalized clips through
// upload, evaluation, and result persistence. Every step is best-effort:
// network loss never destroys captured audio, which stays on the session
// for local download.
package pipeline

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lingualab/oralis/internal/audio"
	"github.com/lingualab/oralis/internal/metrics"
	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/scoring"
	"github.com/lingualab/oralis/internal/storage"
)

// RecordingSubmitter posts one clip to the portal backend.
type RecordingSubmitter interface {
	UploadRecording(ctx context.Context, testID, sessionID, label string, mime string, data []byte) error
}

// ResultPersister stores the session outcome upstream and returns the
// backend-assigned report id.
type ResultPersister interface {
	PersistResult(ctx context.Context, testID, sessionID string, overall float64, feedback any) (string, error)
}

// Outcome is what the pipeline managed to achieve. Evaluation and ReportID
// are empty when the respective step failed; the clips themselves are
// untouched either way.
type Outcome struct {
	Evaluation     *models.Evaluation
	ReportID       string
	StoredURLs     map[string]string
	UploadFailures int
}

type Pipeline struct {
	Archive   storage.Uploader   // optional GCS archival
	Portal    RecordingSubmitter // optional portal upload
	Persister ResultPersister    // optional upstream persistence
	Scorer    scoring.Scorer
	Logger    *logrus.Logger
}

// Process runs the pipeline for one session. It never fails the session: a
// lost upload or unreachable evaluator is logged, counted, and absorbed.
func (p *Pipeline) Process(ctx context.Context, testID, sessionID string, clips []audio.Clip, responses []models.ResponseEntry) Outcome {
	log := p.logger().WithFields(logrus.Fields{"session_id": sessionID, "test_id": testID})

	out := Outcome{StoredURLs: map[string]string{}}

	// Upload each clip independently; one failure must not block the rest.
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, clip := range clips {
		if len(clip.Data) == 0 {
			continue
		}
		wg.Add(1)
		go func(clip audio.Clip) {
			defer wg.Done()
			url, err := p.uploadClip(ctx, testID, sessionID, clip)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.UploadFailures++
				metrics.ClipUploadFailures.Inc()
				log.WithError(err).WithField("label", clip.Label).Warn("clip upload failed, keeping local copy")
				return
			}
			if url != "" {
				out.StoredURLs[clip.Label] = url
			}
		}(clip)
	}
	wg.Wait()

	segments := scorableSegments(clips, responses)
	if len(segments) == 0 || p.Scorer == nil {
		return out
	}

	ev, err := p.Scorer.Score(ctx, testID, sessionID, segments)
	if err != nil {
		metrics.ScoringFailures.Inc()
		log.WithError(err).Warn("scoring failed, session left without evaluation")
		return out
	}
	out.Evaluation = ev

	if p.Persister != nil {
		reportID, err := p.Persister.PersistResult(ctx, testID, sessionID, ev.OverallBand, ev)
		if err != nil {
			log.WithError(err).Warn("result persistence failed")
		} else {
			out.ReportID = reportID
		}
	}

	return out
}

func (p *Pipeline) uploadClip(ctx context.Context, testID, sessionID string, clip audio.Clip) (string, error) {
	var url string
	if p.Archive != nil {
		object := "recordings/" + sessionID + "/" + clip.Label
		u, err := p.Archive.Upload(ctx, object, clip.MIME, bytes.NewReader(clip.Data))
		if err != nil {
			return "", err
		}
		url = u
	}
	if p.Portal != nil {
		if err := p.Portal.UploadRecording(ctx, testID, sessionID, clip.Label, clip.MIME, clip.Data); err != nil {
			return "", err
		}
	}
	return url, nil
}

// scorableSegments pairs each scorable clip with the transcripts captured
// for its part. The introduction is excluded; a partial clip still counts
// for its underlying part.
func scorableSegments(clips []audio.Clip, responses []models.ResponseEntry) []scoring.Segment {
	transcripts := map[models.Part][]string{}
	for _, r := range responses {
		if r.Transcript != "" {
			transcripts[r.Part] = append(transcripts[r.Part], r.Transcript)
		}
	}

	var segments []scoring.Segment
	for _, clip := range clips {
		part, ok := partForLabel(clip.Label)
		if !ok || !part.Scorable() {
			continue
		}
		segments = append(segments, scoring.Segment{
			Part:       part,
			Label:      clip.Label,
			Transcript: strings.Join(transcripts[part], " "),
		})
	}
	return segments
}

func partForLabel(label string) (models.Part, bool) {
	label = strings.TrimSuffix(label, " (partial)")
	for _, p := range []models.Part{models.PartIntro, models.PartOne, models.PartTwo, models.PartThree} {
		if p.Label() == label {
			return p, true
		}
	}
	return "", false
}

func (p *Pipeline) logger() *logrus.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logrus.New()
}
