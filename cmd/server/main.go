package main

import (
	"fmt"
	"net/http"
	"time"

	"agrovoice/internal/config"
	"agrovoice/internal/embedding"
	"agrovoice/internal/handlers"
	"agrovoice/internal/logger"
	"agrovoice/internal/metrics"
	"agrovoice/internal/retrieval"
	"agrovoice/internal/scheduler"
	"agrovoice/internal/storage"
	"agrovoice/internal/transcribe"
	"agrovoice/internal/version"
	"agrovoice/internal/youtube"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.Module("server")

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("could not open database")
	}
	defer db.Close()

	media := storage.NewMediaRepository(db)
	chunks := storage.NewChunkRepository(db)

	yt := youtube.NewClient()
	transcriber := transcribe.NewChunked(
		transcribe.NewClient(cfg.TranscribeURL, cfg.TranscribeAPIKey),
		transcribe.ChunkedConfig{
			MaxPayloadBytes: cfg.MaxPayloadBytes,
			SegmentSeconds:  cfg.SegmentSeconds,
			MaxRetries:      cfg.MaxAttempts,
			RetryBaseDelay:  2 * time.Second,
			SegmentStagger:  500 * time.Millisecond,
			WorkDir:         cfg.WorkDir,
		},
		logger.Module("transcribe"),
	)

	sched := scheduler.New(media, yt, transcriber, scheduler.Config{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		MaxAttempts:       cfg.MaxAttempts,
		RetryDelayBase:    cfg.RetryDelayBase,
		MinStageDelay:     cfg.MinStageDelay,
		StaggerBase:       cfg.StaggerBase,
		StaggerStep:       cfg.StaggerStep,
		SkipExisting:      cfg.SkipExisting,
		OffPeakEnabled:    cfg.OffPeakEnabled,
		OffPeakStartHour:  cfg.OffPeakStartHour,
		OffPeakEndHour:    cfg.OffPeakEndHour,
		WorkDir:           cfg.WorkDir,
		Language:          cfg.TranscribeLanguage,
	}, logger.Module("scheduler"))
	sched.Start()
	defer sched.Stop()

	index := embedding.NewIndex(embedding.NewClient(cfg.EmbedURL, cfg.EmbedAPIKey), chunks)
	engine := retrieval.NewEngine(index, media, retrieval.DefaultEngineConfig(), logger.Module("retrieval"))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	jobs := handlers.NewJobHandler(sched, yt)
	search := handlers.NewSearchHandler(engine)

	api := e.Group("/api")
	api.POST("/ingest", jobs.Ingest)
	api.GET("/jobs", jobs.List)
	api.GET("/jobs/:id", jobs.Get)
	api.GET("/status", jobs.Status)
	api.POST("/report", jobs.Report)
	api.GET("/search", search.Search)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	log.WithField("port", cfg.Port).Info("starting agrovoice server")
	if err := e.Start(fmt.Sprintf(":%s", cfg.Port)); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
