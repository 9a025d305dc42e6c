package config

import (
	"os"
	"strconv"
	"time"

	"github.com/lingualab/oralis/internal/exam"
)

// App holds the service-level settings read from the environment.
type App struct {
	Port string

	PortalBaseURL string
	PortalToken   string
	ScoringMode   string // "portal" or "vertex"

	STTProvider string // "google" or "mock"
	STTLanguage string
	VoiceOutput bool

	GCSBucket string

	VertexProject    string
	VertexLocation   string
	VertexModel      string
	VertexEmbedModel string

	ScriptFile string // optional local YAML script for dev/offline runs

	Engine exam.Config
}

func LoadApp() App {
	return App{
		Port: envOrDefault("PORT", "8080"),

		PortalBaseURL: os.Getenv("PORTAL_BASE_URL"),
		PortalToken:   os.Getenv("PORTAL_TOKEN"),
		ScoringMode:   envOrDefault("SCORING_MODE", "portal"),

		STTProvider: envOrDefault("STT_PROVIDER", "google"),
		STTLanguage: envOrDefault("STT_LANGUAGE", "en-US"),
		VoiceOutput: envOrDefault("VOICE_OUTPUT", "true") == "true",

		GCSBucket: os.Getenv("GCS_BUCKET"),

		VertexProject:    os.Getenv("VERTEX_PROJECT"),
		VertexLocation:   envOrDefault("VERTEX_LOCATION", "us-central1"),
		VertexModel:      os.Getenv("VERTEX_MODEL"),
		VertexEmbedModel: os.Getenv("VERTEX_EMBED_MODEL"),

		ScriptFile: os.Getenv("SCRIPT_FILE"),

		Engine: exam.Config{
			PrepWindow:   envDuration("PREP_WINDOW", time.Minute),
			SpeakWindow:  envDuration("SPEAK_WINDOW", 2*time.Minute),
			SettlePause:  envDuration("SETTLE_PAUSE", time.Second),
			AdvancePause: envDuration("ADVANCE_PAUSE", 1500*time.Millisecond),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
