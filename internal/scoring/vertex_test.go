package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lingualab/oralis/internal/models"
)

type fakeLLM struct {
	out string
	err error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return f.out, f.err
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}

func (f *fakeLLM) Close() error { return nil }

func TestParseEvaluationPlainJSON(t *testing.T) {
	raw := `{"overall_band":6.5,"part_bands":{"1":6.0,"2":6.5,"3":7.0},"fluency":"steady pace","lexical":"","grammar":"","pronunciation":"","strengths":["coherent"],"improvements":["tenses"]}`

	ev, err := parseEvaluation(raw)
	if err != nil {
		t.Fatalf("parseEvaluation: %v", err)
	}
	if ev.OverallBand != 6.5 {
		t.Errorf("overall = %v, want 6.5", ev.OverallBand)
	}
	if ev.PartBands["3"] != 7.0 {
		t.Errorf("part 3 band = %v, want 7.0", ev.PartBands["3"])
	}
	if len(ev.Strengths) != 1 || ev.Strengths[0] != "coherent" {
		t.Errorf("strengths = %v", ev.Strengths)
	}
}

func TestParseEvaluationFencedJSON(t *testing.T) {
	raw := "```json\n{\"overall_band\":5.5,\"part_bands\":{\"1\":5.5}}\n```"

	ev, err := parseEvaluation(raw)
	if err != nil {
		t.Fatalf("parseEvaluation: %v", err)
	}
	if ev.OverallBand != 5.5 {
		t.Errorf("overall = %v, want 5.5", ev.OverallBand)
	}
}

func TestParseEvaluationGarbage(t *testing.T) {
	if _, err := parseEvaluation("the candidate did quite well"); err == nil {
		t.Fatal("parseEvaluation accepted prose")
	}
}

func TestVertexScorerPropagatesError(t *testing.T) {
	s := &VertexScorer{LLM: &fakeLLM{err: errors.New("quota")}}
	if _, err := s.Score(context.Background(), "t1", "s1", nil); err == nil {
		t.Fatal("Score swallowed the model error")
	}
}

func TestBuildPromptIncludesTranscripts(t *testing.T) {
	prompt := buildPrompt([]Segment{
		{Part: models.PartOne, Label: "Part 1", Transcript: "I work in a hospital"},
		{Part: models.PartTwo, Label: "Part 2", Transcript: "a place I like to visit"},
	})

	for _, want := range []string{"Part 1 transcript:", "I work in a hospital", "a place I like to visit", "overall_band"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
