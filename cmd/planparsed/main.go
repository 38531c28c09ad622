package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quangtrung-dev/planparse/internal/api"
	"github.com/quangtrung-dev/planparse/internal/config"
	"github.com/quangtrung-dev/planparse/internal/extract"
	"github.com/quangtrung-dev/planparse/internal/pipeline"
	"github.com/quangtrung-dev/planparse/internal/store"
	"github.com/quangtrung-dev/planparse/internal/textextract"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.SQLitePath, log)
	if err != nil {
		log.Error("opening store", "error", err)
		os.Exit(1)
	}

	texts := textextract.NewExtractor(textextract.Config{
		Pdftotext:     cfg.PdftotextBin,
		Pdftoppm:      cfg.PdftoppmBin,
		Tesseract:     cfg.TesseractBin,
		TesseractLang: cfg.TesseractLang,
		DPI:           cfg.OCRDPI,
		MaxOCRPages:   cfg.OCRMaxPages,
	}, log)

	llm := extract.New(extract.Options{
		UseLLM: cfg.UseLLM,
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AnthropicModel,
		Logger: log,
	})

	orch := pipeline.NewOrchestrator(cfg, texts, llm, st, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, st, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if la, ok := llm.(*extract.LlmAssisted); ok {
			if c := la.Client(); c != nil {
				c.Close()
			}
		}
		st.Close()
	}()

	log.Info("starting planparsed",
		"port", cfg.Port,
		"sqlite", st.Path(),
		"llm_enabled", cfg.UseLLM && cfg.AnthropicAPIKey != "")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
