package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/byteai/voiceline/internal/config"
	"github.com/byteai/voiceline/internal/log"
	"github.com/byteai/voiceline/internal/store"
	"github.com/byteai/voiceline/pkg/knowledge"
	"github.com/byteai/voiceline/pkg/llm"
	"github.com/byteai/voiceline/pkg/stt"
	"github.com/byteai/voiceline/pkg/telephony"
	"github.com/byteai/voiceline/pkg/tools"
	"github.com/byteai/voiceline/pkg/tts"
	"github.com/byteai/voiceline/pkg/voice"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the voiceline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log.Init(cfg.LogLevel)
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	logger := log.L()
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Knowledge base: SQLite-backed full-text index, loaded from the
	// document file at startup.
	kdb, err := store.Open(cfg.Knowledge.DBPath, logger)
	if err != nil {
		return fmt.Errorf("opening knowledge db: %w", err)
	}
	defer kdb.Close()

	kb := knowledge.NewBase(kdb, logger)
	if cfg.Knowledge.Path != "" {
		n, err := kb.LoadFile(ctx, cfg.Knowledge.Path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Index may already be populated via `voiceline kb load`.
			logger.Warn("knowledge file missing, serving existing index", "path", cfg.Knowledge.Path)
		case err != nil:
			return fmt.Errorf("loading knowledge base: %w", err)
		default:
			logger.Info("knowledge base loaded", "documents", n, "path", cfg.Knowledge.Path)
		}
	}

	// Tool stores share one operational database.
	tdb, err := store.Open(cfg.Tools.DBPath, logger)
	if err != nil {
		return fmt.Errorf("opening tools db: %w", err)
	}
	defer tdb.Close()

	registry := tools.NewRegistry(cfg.Tools.Timeout, logger)
	tools.RegisterBuiltin(registry,
		tools.NewAppointmentStore(tdb),
		tools.NewTicketStore(tdb, cfg.Tools.SupportPhone),
	)

	sttProvider, err := stt.NewDeepgram(
		stt.WithAPIKey(cfg.STT.APIKey),
		stt.WithModel(cfg.STT.Model),
		stt.WithLanguage(cfg.STT.Language),
		stt.WithAudioFormat(cfg.STT.Encoding, cfg.STT.SampleRate),
		stt.WithEndpointing(time.Duration(cfg.STT.EndpointingMs)*time.Millisecond),
		stt.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("configuring recognizer: %w", err)
	}
	defer sttProvider.Close()

	ttsProvider, err := tts.NewElevenLabs(
		tts.WithAPIKey(cfg.TTS.APIKey),
		tts.WithVoice(cfg.TTS.VoiceID),
		tts.WithModel(cfg.TTS.Model),
		tts.WithOutputFormat(tts.Encoding(cfg.TTS.OutputFormat)),
		tts.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("configuring synthesizer: %w", err)
	}
	defer ttsProvider.Close()

	llmProvider, err := llm.NewAnthropic(
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("configuring model: %w", err)
	}
	defer llmProvider.Close()

	vcfg := voice.DefaultConfig()
	vcfg.MaxSessions = cfg.Session.MaxSessions
	vcfg.SilenceTimeout = cfg.Session.SilenceTimeout
	vcfg.GenerationTimeout = cfg.Session.GenerationTimeout
	vcfg.MaxHistoryTurns = cfg.Session.MaxHistoryTurns
	vcfg.RetrievalTimeout = cfg.Knowledge.Timeout
	vcfg.RetrievalTopK = cfg.Knowledge.TopK
	if cfg.LLM.SystemPrompt != "" {
		vcfg.SystemPrompt = cfg.LLM.SystemPrompt
	}

	systemPrompt := vcfg.SystemPrompt
	if cfg.Knowledge.PreloadPrompt {
		text, err := kb.PromptText(ctx)
		if err != nil {
			logger.Warn("knowledge preload failed, falling back to per-turn search", "error", err)
		} else {
			systemPrompt += text
		}
	}

	deps := voice.Deps{
		STT:       sttProvider,
		TTS:       ttsProvider,
		LLM:       llmProvider,
		Retriever: kb,
		Tools:     registry,
		Logger:    logger,
		OnTransfer: func(sessionID string) {
			logger.Info("transferring call to human",
				"session", sessionID, "phone", cfg.Tools.SupportPhone)
		},
	}
	sched := voice.NewScheduler(vcfg, deps, systemPrompt)

	gw := telephony.DefaultConfig()
	gw.Host = cfg.Server.Host
	gw.Port = cfg.Server.Port
	gw.WebSocketURL = cfg.Server.WebSocketURL
	gw.EnableTestEndpoints = cfg.Server.EnableTestEndpoints
	server := telephony.NewServer(gw, sched, logger)

	errc := make(chan error, 1)
	go func() {
		errc <- server.Listen()
	}()
	logger.Info("voiceline ready", "version", version,
		"max_sessions", vcfg.MaxSessions, "port", cfg.Server.Port)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown incomplete", "error", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Warn("session drain incomplete", "error", err)
	}
	return nil
}
