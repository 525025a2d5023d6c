// Command platepipeline runs the resolution stage: it watches the
// violation directory, enhances each artifact, reads the plate through
// the OCR chain and stores accepted plates.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"safeheads/internal/config"
	"safeheads/internal/db"
	"safeheads/internal/enhance"
	internalhttp "safeheads/internal/http"
	"safeheads/internal/logging"
	"safeheads/internal/metrics"
	"safeheads/internal/ocr"
	"safeheads/internal/repository"
	"safeheads/internal/resolver"
	"safeheads/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info", true).Fatal().Err(err).Msg("could not load config")
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	readers := make([]ocr.Reader, 0, len(cfg.OCR.Languages))
	for _, lang := range cfg.OCR.Languages {
		reader, err := ocr.NewTesseractReader(lang)
		if err != nil {
			log.Fatal().Err(err).Str("language", lang).Msg("could not init OCR reader")
		}
		defer reader.Close()
		readers = append(readers, reader)
	}
	if len(readers) == 0 {
		log.Fatal().Msg("at least one OCR language is required")
	}
	chain := ocr.NewChain(log, readers...)

	m := metrics.New()

	var store resolver.Persister
	var plateService *service.PlateService
	if cfg.Database.Enabled {
		gdb, err := db.Open(cfg.Database.DSN, log)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open database")
		}
		repo := repository.NewPlateRepository(gdb)
		plateService = service.NewPlateService(repo, log)
		store = plateService
	}

	res := resolver.New(log, resolver.Config{
		ViolationDir:     cfg.Pipeline.ViolationDir,
		EnhancedDir:      cfg.Pipeline.EnhancedDir,
		ArtifactPrefix:   cfg.Crop.Prefix,
		PollInterval:     cfg.Pipeline.PollInterval,
		SettleDelay:      cfg.Pipeline.SettleDelay,
		MinResolution:    cfg.Pipeline.MinResolution,
		MaxHistory:       cfg.Pipeline.MaxHistory,
		MaxParseAttempts: cfg.Pipeline.MaxParseAttempts,
	}, enhance.New(), chain, store, m)

	router := internalhttp.NewRouter(log, cfg)
	router.GET(cfg.HTTP.MetricsPath, gin.WrapH(m.Handler()))
	internalhttp.NewPipelineHandler(res, log).Register(router)
	if plateService != nil {
		handler := internalhttp.NewHandler(plateService, log)
		handler.Register(router, internalhttp.JWTAuth(cfg.HTTP.JWTSecret))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	log.Info().Str("violation_dir", cfg.Pipeline.ViolationDir).Msg("plate pipeline starting")
	if err := res.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("plate pipeline failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("platepipeline stopped")
}
