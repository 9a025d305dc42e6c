package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/lingualab/oralis/config"
	"github.com/lingualab/oralis/internal/api/handlers"
	"github.com/lingualab/oralis/internal/api/middleware"
	"github.com/lingualab/oralis/internal/api/routes"
	"github.com/lingualab/oralis/internal/cache"
	"github.com/lingualab/oralis/internal/content"
	"github.com/lingualab/oralis/internal/logger"
	"github.com/lingualab/oralis/internal/pipeline"
	"github.com/lingualab/oralis/internal/portal"
	"github.com/lingualab/oralis/internal/providers/llm"
	"github.com/lingualab/oralis/internal/providers/stt"
	"github.com/lingualab/oralis/internal/providers/tts"
	mongorepo "github.com/lingualab/oralis/internal/repositories/mongo"
	pgrepo "github.com/lingualab/oralis/internal/repositories/postgres"
	"github.com/lingualab/oralis/internal/scoring"
	"github.com/lingualab/oralis/internal/services"
	"github.com/lingualab/oralis/internal/storage"
)

func main() {
	_ = godotenv.Load()

	lg := logger.New()
	cfg := config.LoadApp()
	ctx := context.Background()

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	lg.Info("MongoDB connected")

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.EnsurePostgresSchema(); err != nil {
		log.Fatalf("PostgreSQL migration error: %v", err)
	}
	lg.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	lg.Info("Redis connected")

	// Portal backend client and script loading. A local YAML script file
	// takes over when the portal is not configured (development, offline).
	var portalClient *portal.Client
	if cfg.PortalBaseURL != "" {
		portalClient = portal.NewClient(cfg.PortalBaseURL, cfg.PortalToken)
	}

	redisCache := cache.NewRedisCache(config.RedisClient)

	var fetcher content.Fetcher
	switch {
	case cfg.ScriptFile != "":
		script, err := content.LoadFile(cfg.ScriptFile)
		if err != nil {
			log.Fatalf("script file error: %v", err)
		}
		fetcher = content.FixedScript(script)
	case portalClient != nil:
		fetcher = portalClient
	default:
		log.Fatal("either PORTAL_BASE_URL or SCRIPT_FILE must be set")
	}
	scripts := content.NewLoader(fetcher, redisCache, 0)

	// Speech providers.
	var speaker tts.Synthesizer = tts.Disabled{}
	if cfg.VoiceOutput {
		g, err := tts.NewGoogleTTS(ctx)
		if err != nil {
			log.Fatalf("text-to-speech init error: %v", err)
		}
		defer g.Close()
		speaker = g
	}

	var recognizers services.RecognizerFactory
	if cfg.STTProvider == "mock" {
		recognizers = func(ctx context.Context) (stt.Recognizer, error) {
			return stt.NewMock(), nil
		}
	} else {
		recognizers = func(ctx context.Context) (stt.Recognizer, error) {
			return stt.NewGoogleStream(ctx, cfg.STTLanguage, lg)
		}
	}

	// Vertex is optional: it backs direct scoring and transcript embeddings.
	var gemini llm.Provider
	if cfg.VertexProject != "" {
		g, err := llm.NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel, cfg.VertexEmbedModel)
		if err != nil {
			log.Fatalf("Vertex init error: %v", err)
		}
		defer g.Close()
		gemini = g
	}

	var scorer scoring.Scorer
	switch {
	case cfg.ScoringMode == "vertex" && gemini != nil:
		scorer = &scoring.VertexScorer{LLM: gemini}
	case portalClient != nil:
		scorer = &scoring.PortalScorer{Client: portalClient}
	}

	var (
		archive storage.Uploader
		signer  storage.Signer
	)
	if cfg.GCSBucket != "" {
		a, err := storage.NewGCSArchive(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		defer a.Close()
		archive = a
		signer = a
	}

	pipe := &pipeline.Pipeline{
		Archive: archive,
		Scorer:  scorer,
		Logger:  lg,
	}
	if portalClient != nil {
		pipe.Portal = portalClient
		pipe.Persister = portalClient
	}

	relay := services.NewRedisEventSink(config.RedisClient, lg)
	db := config.MongoDatabase()

	svc := &services.InterviewService{
		Sessions:   mongorepo.NewSessionRepo(db),
		Responses:  pgrepo.NewResponseRepo(config.PostgresDB),
		Results:    pgrepo.NewResultRepo(config.PostgresDB),
		Scripts:    scripts,
		Speaker:    speaker,
		Recognizer: recognizers,
		Embedder:   gemini,
		Registry:   services.NewRegistry(),
		Lock:       services.NewAttemptLock(config.RedisClient, 0),
		Signer:     signer,
		Sink:       relay,
		Pipeline:   pipe,
		Engine:     cfg.Engine,
		Logger:     lg,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(lg))

	routes.RegisterRoutes(r, routes.Deps{
		Interview: handlers.NewInterviewHandler(svc),
		WS:        handlers.NewWSHandler(svc, relay),
	})

	lg.WithField("port", cfg.Port).Info("starting server")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
