// Package portal is the REST client for the exam portal backend: test
// content, prior attempts, recording upload, AI scoring, and session result
// persistence.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/lingualab/oralis/internal/models"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("portal: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchScript retrieves the question bank for a test.
func (c *Client) FetchScript(ctx context.Context, testID string) (*models.ExamScript, error) {
	var script models.ExamScript
	if err := c.getJSON(ctx, "/tests/"+testID+"/content", &script); err != nil {
		return nil, err
	}
	if script.TestID == "" {
		script.TestID = testID
	}
	return &script, nil
}

// PriorSession is one earlier attempt at a test.
type PriorSession struct {
	SessionID string    `json:"session_id"`
	TestID    string    `json:"test_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ListSessions returns the candidate's prior attempts at a test, matched by
// the backend-assigned test id.
func (c *Client) ListSessions(ctx context.Context, testID string) ([]PriorSession, error) {
	var out struct {
		Sessions []PriorSession `json:"sessions"`
	}
	if err := c.getJSON(ctx, "/tests/"+testID+"/sessions", &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// HasCompleted reports whether the candidate already finished this test.
func (c *Client) HasCompleted(ctx context.Context, testID string) (bool, error) {
	sessions, err := c.ListSessions(ctx, testID)
	if err != nil {
		return false, err
	}
	for _, s := range sessions {
		if s.Status == models.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

// UploadRecording posts one finished clip. Per-clip and fire-and-forget
// tolerant; the pipeline isolates failures.
func (c *Client) UploadRecording(ctx context.Context, testID, sessionID, label string, mime string, data []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	_ = w.WriteField("test_id", testID)
	_ = w.WriteField("session_id", sessionID)
	_ = w.WriteField("label", label)

	fw, err := w.CreateFormFile("clip", label+clipExt(mime))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recordings", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ScoringSegment is one scorable part submitted for evaluation.
type ScoringSegment struct {
	Label      string `json:"label"`
	Part       string `json:"part"`
	Transcript string `json:"transcript"`
}

// SubmitForScoring sends the scorable segments as one batch and returns the
// evaluator's verdict.
func (c *Client) SubmitForScoring(ctx context.Context, testID, sessionID string, segments []ScoringSegment) (*models.Evaluation, error) {
	in := map[string]any{
		"test_id":    testID,
		"session_id": sessionID,
		"segments":   segments,
	}
	var out models.Evaluation
	if err := c.postJSON(ctx, "/scoring", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PersistResult stores the session outcome and returns the backend-assigned
// identifier used for later report retrieval.
func (c *Client) PersistResult(ctx context.Context, testID, sessionID string, overall float64, feedback any) (string, error) {
	in := map[string]any{
		"test_id":    testID,
		"session_id": sessionID,
		"module":     "speaking",
		"overall":    overall,
		"feedback":   feedback,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/sessions", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// FetchSession reloads a previously persisted session record by its
// backend-assigned id.
func (c *Client) FetchSession(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/sessions/"+id, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func clipExt(mime string) string {
	switch mime {
	case "audio/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}
