package llm

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client   *vertexgenai.Client
	model    *vertexgenai.GenerativeModel
	embedder *vertexgenai.EmbeddingModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName, embedModel string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}

	return &VertexGemini{
		client:   c,
		model:    c.GenerativeModel(modelName),
		embedder: c.EmbeddingModel(embedModel),
	}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Generate(ctx context.Context, prompt string) (string, error) {
	var full strings.Builder

	it := v.model.GenerateContentStream(ctx, vertexgenai.Text(prompt))
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", err
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok {
					full.WriteString(string(t))
				}
			}
		}
	}

	return full.String(), nil
}

func (v *VertexGemini) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := v.embedder.EmbedContent(ctx, vertexgenai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil {
		return nil, nil
	}
	return res.Embedding.Values, nil
}
