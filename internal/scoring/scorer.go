// Package scoring turns a completed session's scorable segments into band
// scores, either through the portal's AI scoring endpoint or directly
// through a Vertex model.
package scoring

import (
	"context"

	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/portal"
)

// Segment is one scorable part of the exam with its transcript.
type Segment struct {
	Part       models.Part
	Label      string
	Transcript string
}

type Scorer interface {
	Score(ctx context.Context, testID, sessionID string, segments []Segment) (*models.Evaluation, error)
}

// PortalScorer submits segments to the remote evaluator.
type PortalScorer struct {
	Client *portal.Client
}

func (s *PortalScorer) Score(ctx context.Context, testID, sessionID string, segments []Segment) (*models.Evaluation, error) {
	payload := make([]portal.ScoringSegment, 0, len(segments))
	for _, seg := range segments {
		payload = append(payload, portal.ScoringSegment{
			Label:      seg.Label,
			Part:       string(seg.Part),
			Transcript: seg.Transcript,
		})
	}
	return s.Client.SubmitForScoring(ctx, testID, sessionID, payload)
}
