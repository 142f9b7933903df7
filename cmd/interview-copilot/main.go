package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/user/interview-copilot/internal/audio"
	"github.com/user/interview-copilot/internal/config"
	"github.com/user/interview-copilot/internal/playback"
	"github.com/user/interview-copilot/internal/session"
	"github.com/user/interview-copilot/internal/store"
	"github.com/user/interview-copilot/internal/summary"
	"github.com/user/interview-copilot/internal/transcript"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logging
	setupLogging(cfg.LogLevel)

	log.Info().Msg("Starting Interview Copilot")

	// Output path: device sink fed by the gapless scheduler.
	sink, err := audio.NewDeviceSink(audio.PlaybackRate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audio output")
	}
	scheduler := playback.NewScheduler(playback.NewClock(), sink)

	// The speech hint is best-effort; the meter works without it.
	var detector audio.SpeechDetector
	if vad, err := audio.NewWebRTCVAD(); err != nil {
		log.Warn().Err(err).Msg("Voice activity detector unavailable")
	} else {
		detector = vad
		defer vad.Close()
	}
	meter := audio.NewLevelMeter(detector)

	aggregator := transcript.NewAggregator()

	ictx := session.InterviewContext{
		JobTitle:       cfg.JobTitle,
		Company:        cfg.Company,
		Resume:         readFileOrEmpty(cfg.ResumeFile),
		JobDescription: readFileOrEmpty(cfg.JobDescriptionFile),
	}

	controller := session.NewController(session.Options{
		APIKey:    cfg.GeminiAPIKey,
		Endpoint:  cfg.Endpoint,
		Model:     cfg.Model,
		Voice:     cfg.Voice,
		Interview: ictx,
		Length:    session.AnswerLength(cfg.AnswerLength),
		NewSource: func() (audio.Source, error) {
			return audio.NewMicSource(cfg.CaptureSampleRate, cfg.CaptureFrameSize)
		},
	}, scheduler, aggregator, meter)

	if err := controller.Connect(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}

	log.Info().Msg("Session is live. Press Ctrl+C to end.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Info().Msg("Ending session...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		controller.Disconnect()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Session ended gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
	}

	_ = sink.Close()

	exportSession(cfg, controller.Segments())
}

// exportSession writes the transcript to disk and, when enabled, generates
// debrief notes from it. It runs on its own deadline so a slow shutdown
// cannot starve the export.
func exportSession(cfg *config.Config, segments []transcript.Segment) {
	if len(segments) == 0 {
		log.Info().Msg("No transcript to export")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fileStore, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open data directory")
		return
	}

	sessionID := store.GenerateSessionID()

	// The transcript save and the debrief generation are independent.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := fileStore.SaveTranscript(sessionID, segments)
		return err
	})

	if cfg.SummaryEnabled {
		g.Go(func() error {
			summariser, err := summary.NewSummariser(cfg.GeminiAPIKey, cfg.SummaryModel)
			if err != nil {
				return err
			}
			defer summariser.Close()

			notes, err := summariser.Summarise(gctx, segments)
			if err != nil {
				return err
			}

			_, err = fileStore.SaveNotes(sessionID, notes)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Failed to export session")
	}
}

func readFileOrEmpty(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Failed to read context file")
		return ""
	}
	return string(data)
}

func setupLogging(level string) {
	// Setup zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	// Set log level
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("level", level).Msg("Logging configured")
}
