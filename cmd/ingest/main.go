package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"agrovoice/internal/config"
	"agrovoice/internal/logger"
	"agrovoice/internal/models"
	"agrovoice/internal/scheduler"
	"agrovoice/internal/storage"
	"agrovoice/internal/transcribe"
	"agrovoice/internal/youtube"
)

func main() {
	var (
		playlist = flag.String("playlist", "", "YouTube playlist URL to ingest")
		priority = flag.String("priority", "normal", "Job priority: low, normal, high")
		timeout  = flag.Int("timeout", 120, "Overall timeout in minutes")
		verbose  = flag.Bool("v", false, "Verbose output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [video...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s https://www.youtube.com/watch?v=xxx\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -playlist https://www.youtube.com/playlist?list=xxx\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -priority high video-key-1 video-key-2\n", os.Args[0])
	}

	flag.Parse()

	if *playlist == "" && flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: a playlist URL or at least one video is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.Module("ingest")

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Minute)
	defer cancel()

	yt := youtube.NewClient()

	var items []models.VideoMeta
	if *playlist != "" {
		listed, err := yt.ListPlaylist(ctx, *playlist)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not list playlist: %v\n", err)
			os.Exit(1)
		}
		items = listed
	}
	for _, arg := range flag.Args() {
		meta, err := yt.GetVideoMeta(ctx, arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", arg, err)
			continue
		}
		items = append(items, *meta)
	}

	if len(items) == 0 {
		fmt.Fprintf(os.Stderr, "Error: nothing to ingest\n")
		os.Exit(1)
	}
	if *verbose {
		for _, item := range items {
			fmt.Fprintf(os.Stderr, "queued: %s (%s)\n", item.Key, item.Title)
		}
	}

	media := storage.NewMediaRepository(db)
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

	ids := sched.EnqueueBatch(items, parsePriority(*priority))
	sched.Start()
	defer sched.Stop()

	fmt.Printf("Processing %d videos...\n", len(ids))

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Warn("timed out waiting for batch")
			printReport(sched.Report(ids))
			os.Exit(1)
		case <-ticker.C:
		}

		report := sched.Report(ids)
		if *verbose {
			st := sched.Status()
			fmt.Fprintf(os.Stderr, "progress: %d/%d done, %d active, %d queued\n",
				report.Processed, len(ids), st.Active, st.Queued)
		}
		if report.Processed == len(ids) {
			printReport(report)
			if report.Failed > 0 {
				os.Exit(1)
			}
			return
		}
	}
}

func printReport(report models.BatchReport) {
	fmt.Printf("\n=== Batch Report ===\n")
	fmt.Printf("Processed: %d\n", report.Processed)
	fmt.Printf("Completed: %d\n", report.Completed)
	fmt.Printf("Failed: %d\n", report.Failed)
	for _, e := range report.Errors {
		fmt.Printf("  %s [%s]: %s\n", e.VideoKey, e.Stage, e.Message)
	}
}

func parsePriority(s string) int {
	switch s {
	case "high":
		return models.PriorityHigh
	case "low":
		return models.PriorityLow
	default:
		return models.PriorityNormal
	}
}
