package content

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/utils"
)

const scriptYAML = `test_id: demo-1
title: General Speaking
language: en
intro:
  - text: "Good morning. This test is recorded."
  - text: "Can you tell me your full name, please?"
    expects_response: true
part1:
  - "Do you work or study?"
  - "What do you enjoy about it?"
part2:
  topic: "Describe a place you like to visit."
  points:
    - "where it is"
    - "how often you go there"
part3:
  - "Why do people enjoy travelling?"
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte(scriptYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	script, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if script.TestID != "demo-1" {
		t.Errorf("TestID = %q, want demo-1", script.TestID)
	}
	if len(script.Intro) != 2 || !script.Intro[1].ExpectsResponse {
		t.Errorf("intro parsed wrong: %+v", script.Intro)
	}
	if len(script.Part1) != 2 {
		t.Errorf("part1 = %d questions, want 2", len(script.Part1))
	}
	if script.Part2.Topic == "" || len(script.Part2.Points) != 2 {
		t.Errorf("part2 parsed wrong: %+v", script.Part2)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte("test_id: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile accepted an incomplete script")
	}
}

type countingFetcher struct {
	mu     sync.Mutex
	calls  int
	script *models.ExamScript
}

func (f *countingFetcher) FetchScript(ctx context.Context, testID string) (*models.ExamScript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.script, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func validScript() *models.ExamScript {
	return &models.ExamScript{
		TestID: "demo-1",
		Intro:  []models.IntroStep{{Text: "hello"}},
		Part1:  []string{"q1"},
		Part2:  models.CueCard{Topic: "a topic"},
		Part3:  []string{"q3"},
	}
}

func TestLoadCachesScript(t *testing.T) {
	fetcher := &countingFetcher{script: validScript()}
	loader := NewLoader(fetcher, newMemCache(), time.Minute)

	for i := 0; i < 3; i++ {
		script, err := loader.Load(context.Background(), "demo-1")
		if err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
		if script.TestID != "demo-1" {
			t.Fatalf("Load #%d returned %q", i, script.TestID)
		}
	}

	if fetcher.calls != 1 {
		t.Fatalf("backend fetched %d times, want 1", fetcher.calls)
	}
}

func TestLoadRequiresTestID(t *testing.T) {
	loader := NewLoader(&countingFetcher{script: validScript()}, nil, 0)
	_, err := loader.Load(context.Background(), "")
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("Load(\"\") = %v, want INVALID_ARGUMENT", err)
	}
}

func TestFixedScriptFillsTestID(t *testing.T) {
	s := validScript()
	s.TestID = ""
	fetcher := FixedScript(s)

	got, err := fetcher.FetchScript(context.Background(), "assigned-9")
	if err != nil {
		t.Fatalf("FetchScript: %v", err)
	}
	if got.TestID != "assigned-9" {
		t.Errorf("TestID = %q, want assigned-9", got.TestID)
	}
}
