package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jordan-clayton/ribble-whisper/internal/capture"
	"github.com/jordan-clayton/ribble-whisper/internal/config"
	"github.com/jordan-clayton/ribble-whisper/internal/metrics"
	"github.com/jordan-clayton/ribble-whisper/internal/model"
	"github.com/jordan-clayton/ribble-whisper/internal/pipeline"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "ribble-stream"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	logger.Info("service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)
	logger.Info("configuration loaded",
		slog.Int("ring_capacity_samples", int(cfg.Ring.CapacitySamples)),
		slog.Int("target_sample_rate", int(cfg.Ring.TargetSampleRate)),
		slog.String("vad_backend", cfg.VAD.Backend),
		slog.Float64("vad_threshold", float64(cfg.VAD.Threshold)),
		slog.Int("phrase_end_silence_ms", int(cfg.Segmenter.EndMs)),
		slog.Int("max_window_ms", int(cfg.Segmenter.MaxWindowMs)),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics()
	logger.Info("prometheus metrics initialized")

	source, err := newSource(cfg.Capture)
	if err != nil {
		logger.Error("failed to open capture source", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if wav, ok := source.(*capture.WAVFile); ok {
		logger.Info("loaded wav fixture",
			slog.Float64("duration_seconds", wav.Duration()),
			slog.Int("sample_rate", int(wav.Info().SampleRate)),
			slog.Int("bits_per_sample", int(wav.Info().BitsPerSample)),
		)
	}

	speechModel := model.NewStub(logger)
	logger.Info("using stub speech model; wire a real SpeechModel implementation for production use")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := pipeline.NewBuilder().
		WithConfig(*cfg).
		WithSource(source).
		WithSpeechModel(speechModel).
		WithLogger(logger).
		WithMetrics(appMetrics).
		Start(ctx)
	if err != nil {
		logger.Error("failed to start pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("pipeline started")

	workingCh, unsubWorking := handle.Working()
	confirmedCh, unsubConfirmed := handle.Confirmed()
	statusCh, unsubStatus := handle.Status()
	defer unsubWorking()
	defer unsubConfirmed()
	defer unsubStatus()

	go printTranscript(workingCh, confirmedCh, statusCh, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("waiting for signals...")
	<-sigChan
	logger.Info("received shutdown signal, stopping pipeline")

	if err := handle.Stop(); err != nil {
		logger.Error("pipeline did not shut down cleanly", slog.String("error", err.Error()))
	}

	logger.Info("service stopped")
}

func newSource(cfg config.CaptureConfig) (capture.Source, error) {
	switch cfg.Backend {
	case "wav":
		data, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("read wav fixture %s: %w", cfg.Path, err)
		}
		return capture.NewWAVFile(data)
	default:
		return nil, fmt.Errorf("capture backend %q is not implemented by this build", cfg.Backend)
	}
}

func printTranscript(working, confirmed <-chan string, status <-chan pipeline.StatusEvent, logger *slog.Logger) {
	for {
		select {
		case text, ok := <-confirmed:
			if !ok {
				return
			}
			fmt.Print(text)
		case text, ok := <-working:
			if !ok {
				return
			}
			logger.Debug("working hypothesis", slog.String("text", text))
		case ev, ok := <-status:
			if !ok {
				return
			}
			logger.Debug("pipeline status", slog.String("status", ev))
		}
	}
}

// initLogger creates and configures the structured logger based on configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
