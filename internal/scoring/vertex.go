package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/providers/llm"
)

// VertexScorer evaluates transcripts with a Vertex model when no remote
// scoring endpoint is configured.
type VertexScorer struct {
	LLM llm.Provider
}

func (s *VertexScorer) Score(ctx context.Context, testID, sessionID string, segments []Segment) (*models.Evaluation, error) {
	raw, err := s.LLM.Generate(ctx, buildPrompt(segments))
	if err != nil {
		return nil, err
	}
	return parseEvaluation(raw)
}

func buildPrompt(segments []Segment) string {
	var b strings.Builder
	b.WriteString("You are an examiner for a spoken English proficiency test. ")
	b.WriteString("Score the candidate on a 0-9 band scale, in half-band steps.\n\n")

	for _, seg := range segments {
		fmt.Fprintf(&b, "%s transcript:\n%s\n\n", seg.Label, seg.Transcript)
	}

	b.WriteString("Respond with strict JSON only, no prose, matching:\n")
	b.WriteString(`{"overall_band":0,"part_bands":{"1":0,"2":0,"3":0},` +
		`"fluency":"","lexical":"","grammar":"","pronunciation":"",` +
		`"strengths":[],"improvements":[]}`)
	return b.String()
}

// parseEvaluation decodes the model response, tolerating a fenced code
// block around the JSON.
func parseEvaluation(raw string) (*models.Evaluation, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "{"); i > 0 {
		raw = raw[i:]
	}
	if i := strings.LastIndex(raw, "}"); i >= 0 {
		raw = raw[:i+1]
	}

	var ev models.Evaluation
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return nil, fmt.Errorf("scoring: unparseable evaluator response: %w", err)
	}
	return &ev, nil
}
