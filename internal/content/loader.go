// Package content loads exam scripts: from the portal backend with a Redis
// cache in front, or from a local YAML file for development and offline use.
package content

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lingualab/oralis/internal/cache"
	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/utils"
)

// Fetcher retrieves a script from the question-bank backend.
type Fetcher interface {
	FetchScript(ctx context.Context, testID string) (*models.ExamScript, error)
}

type Loader struct {
	fetcher Fetcher
	cache   cache.Cache
	ttl     time.Duration
}

func NewLoader(fetcher Fetcher, c cache.Cache, ttl time.Duration) *Loader {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Loader{fetcher: fetcher, cache: c, ttl: ttl}
}

// Load returns the script for a test id, consulting the cache first. A
// cache failure falls through to the backend; scripts are immutable so a
// stale hit is harmless.
func (l *Loader) Load(ctx context.Context, testID string) (*models.ExamScript, error) {
	const op = "content.Loader.Load"

	if testID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "test_id is required", nil)
	}

	key := "script:" + testID
	if l.cache != nil {
		var cached models.ExamScript
		if hit, err := l.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	script, err := l.fetcher.FetchScript(ctx, testID)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to fetch test content", err)
	}
	if err := script.Validate(); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "backend returned an invalid script", err)
	}

	if l.cache != nil {
		_ = l.cache.SetJSON(ctx, key, script, l.ttl)
	}
	return script, nil
}

// FixedScript is a Fetcher serving one preloaded script regardless of test
// id, for development against a local YAML file.
func FixedScript(script *models.ExamScript) Fetcher {
	return fixedScript{script: script}
}

type fixedScript struct {
	script *models.ExamScript
}

func (f fixedScript) FetchScript(ctx context.Context, testID string) (*models.ExamScript, error) {
	s := *f.script
	if s.TestID == "" {
		s.TestID = testID
	}
	return &s, nil
}

// LoadFile reads a script from a YAML file.
func LoadFile(path string) (*models.ExamScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}

	var script models.ExamScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script file %s: %w", path, err)
	}
	if err := script.Validate(); err != nil {
		return nil, fmt.Errorf("script file %s: %w", path, err)
	}
	return &script, nil
}
