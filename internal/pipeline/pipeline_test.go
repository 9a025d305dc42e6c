package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/lingualab/oralis/internal/audio"
	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/scoring"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	failFor  string
	uploaded []string
}

func (f *fakeSubmitter) UploadRecording(ctx context.Context, testID, sessionID, label string, mime string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if label == f.failFor {
		return errors.New("connection reset")
	}
	f.uploaded = append(f.uploaded, label)
	return nil
}

type fakeArchive struct{}

func (fakeArchive) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	return "gs://bucket/" + objectName, nil
}

type fakeScorer struct {
	err  error
	eval *models.Evaluation
	got  []scoring.Segment
}

func (f *fakeScorer) Score(ctx context.Context, testID, sessionID string, segments []scoring.Segment) (*models.Evaluation, error) {
	f.got = segments
	return f.eval, f.err
}

type fakePersister struct {
	reportID string
	err      error
	called   bool
}

func (f *fakePersister) PersistResult(ctx context.Context, testID, sessionID string, overall float64, feedback any) (string, error) {
	f.called = true
	return f.reportID, f.err
}

func testClips() []audio.Clip {
	now := time.Now().UTC()
	return []audio.Clip{
		{Label: "Introduction", Data: []byte("i"), MIME: "audio/webm", FinalizedAt: now},
		{Label: "Part 1", Data: []byte("a"), MIME: "audio/webm", FinalizedAt: now},
		{Label: "Part 2", Data: []byte("b"), MIME: "audio/webm", FinalizedAt: now},
		{Label: "Part 3", Data: []byte("c"), MIME: "audio/webm", FinalizedAt: now},
	}
}

func testResponses() []models.ResponseEntry {
	return []models.ResponseEntry{
		{Part: models.PartIntro, Transcript: "my name is Lee"},
		{Part: models.PartOne, QuestionIndex: 0, Transcript: "I work"},
		{Part: models.PartOne, QuestionIndex: 1, Transcript: "the people"},
		{Part: models.PartTwo, Transcript: "a place I like"},
		{Part: models.PartThree, QuestionIndex: 0, Transcript: "for leisure"},
	}
}

func TestProcessIsolatesUploadFailure(t *testing.T) {
	sub := &fakeSubmitter{failFor: "Part 2"}
	p := &Pipeline{Portal: sub}

	out := p.Process(context.Background(), "t1", "s1", testClips(), nil)

	if out.UploadFailures != 1 {
		t.Fatalf("UploadFailures = %d, want 1", out.UploadFailures)
	}
	if got := len(sub.uploaded); got != 3 {
		t.Fatalf("uploaded %d clips, want 3 despite one failure", got)
	}
}

func TestProcessSkipsEmptyClips(t *testing.T) {
	sub := &fakeSubmitter{}
	p := &Pipeline{Portal: sub}

	clips := []audio.Clip{
		{Label: "Introduction", Data: nil, MIME: "audio/webm"},
		{Label: "Part 1", Data: []byte("a"), MIME: "audio/webm"},
	}
	out := p.Process(context.Background(), "t1", "s1", clips, nil)

	if out.UploadFailures != 0 {
		t.Fatalf("UploadFailures = %d, want 0", out.UploadFailures)
	}
	if len(sub.uploaded) != 1 || sub.uploaded[0] != "Part 1" {
		t.Fatalf("uploaded = %v, want only Part 1", sub.uploaded)
	}
}

func TestProcessArchivesToStorage(t *testing.T) {
	p := &Pipeline{Archive: fakeArchive{}}

	out := p.Process(context.Background(), "t1", "s1", testClips(), nil)

	if len(out.StoredURLs) != 4 {
		t.Fatalf("StoredURLs = %d entries, want 4", len(out.StoredURLs))
	}
	if want := "gs://bucket/recordings/s1/Part 2"; out.StoredURLs["Part 2"] != want {
		t.Errorf("StoredURLs[Part 2] = %q, want %q", out.StoredURLs["Part 2"], want)
	}
}

func TestProcessScoringFailureAbsorbed(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("model unavailable")}
	persister := &fakePersister{reportID: "r1"}
	p := &Pipeline{Scorer: scorer, Persister: persister}

	out := p.Process(context.Background(), "t1", "s1", testClips(), testResponses())

	if out.Evaluation != nil {
		t.Fatal("evaluation set despite scorer failure")
	}
	if persister.called {
		t.Fatal("persister called without an evaluation")
	}
}

func TestProcessScoresAndPersists(t *testing.T) {
	scorer := &fakeScorer{eval: &models.Evaluation{OverallBand: 6.5}}
	persister := &fakePersister{reportID: "report-9"}
	p := &Pipeline{Scorer: scorer, Persister: persister}

	out := p.Process(context.Background(), "t1", "s1", testClips(), testResponses())

	if out.Evaluation == nil || out.Evaluation.OverallBand != 6.5 {
		t.Fatalf("evaluation = %+v, want overall 6.5", out.Evaluation)
	}
	if out.ReportID != "report-9" {
		t.Fatalf("ReportID = %q, want report-9", out.ReportID)
	}

	// The introduction is never submitted for scoring.
	for _, seg := range scorer.got {
		if seg.Part == models.PartIntro {
			t.Fatalf("introduction segment submitted for scoring: %+v", seg)
		}
	}
	if got := len(scorer.got); got != 3 {
		t.Fatalf("scorable segments = %d, want 3", got)
	}
}

func TestScorableSegmentsGroupsTranscripts(t *testing.T) {
	segments := scorableSegments(testClips(), testResponses())

	byPart := map[models.Part]scoring.Segment{}
	for _, seg := range segments {
		byPart[seg.Part] = seg
	}
	if want := "I work the people"; byPart[models.PartOne].Transcript != want {
		t.Errorf("part 1 transcript = %q, want %q", byPart[models.PartOne].Transcript, want)
	}
	if want := "a place I like"; byPart[models.PartTwo].Transcript != want {
		t.Errorf("part 2 transcript = %q, want %q", byPart[models.PartTwo].Transcript, want)
	}
}

func TestScorableSegmentsPartialLabel(t *testing.T) {
	clips := []audio.Clip{
		{Label: "Part 1 (partial)", Data: []byte("a")},
	}
	responses := []models.ResponseEntry{
		{Part: models.PartOne, Transcript: "half an answer"},
	}

	segments := scorableSegments(clips, responses)
	if len(segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(segments))
	}
	if segments[0].Part != models.PartOne {
		t.Errorf("part = %q, want %q", segments[0].Part, models.PartOne)
	}
	if segments[0].Transcript != "half an answer" {
		t.Errorf("transcript = %q, want the partial answer", segments[0].Transcript)
	}
}
