// Command videoserver runs the detection stage: it reads the video
// source, tracks vehicles, saves crops, scans them for missing helmets
// and writes violation artifacts for the plate pipeline.
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
	"safeheads/internal/crop"
	"safeheads/internal/db"
	"safeheads/internal/detect"
	"safeheads/internal/helmet"
	internalhttp "safeheads/internal/http"
	"safeheads/internal/logging"
	"safeheads/internal/metrics"
	"safeheads/internal/repository"
	"safeheads/internal/service"
	"safeheads/internal/tracker"
	"safeheads/internal/video"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info", true).Fatal().Err(err).Msg("could not load config")
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Video.Source == "" {
		log.Fatal().Msg("video.source is required")
	}

	source, err := video.Open(log, cfg.Video.Source)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open video source")
	}
	defer source.Close()

	vehicleDet, err := detect.NewDNNDetector(log, cfg.Detection.Model,
		cfg.Detection.Config, cfg.Detection.Classes, cfg.Detection.InputSize)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load vehicle detector")
	}
	defer vehicleDet.Close()

	helmetDet, err := detect.NewDNNDetector(log, cfg.Helmet.Model,
		cfg.Helmet.Config, cfg.Helmet.Classes, cfg.Helmet.InputSize)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load helmet detector")
	}
	defer helmetDet.Close()

	m := metrics.New()

	trk := tracker.New(tracker.Config{
		IOUThreshold: cfg.Tracker.IOUThreshold,
		MaxIdle:      cfg.Tracker.MaxIdle,
	})

	extractor := crop.NewExtractor(crop.ExtractorConfig{
		Dir:          cfg.Crop.Dir,
		Prefix:       cfg.Crop.Prefix,
		SaveInterval: cfg.Crop.SaveInterval,
		MinWidth:     cfg.Crop.MinWidth,
		MinHeight:    cfg.Crop.MinHeight,
	}, log)

	scanner := helmet.NewScanner(log, helmet.ScannerConfig{
		CropDir:       cfg.Crop.Dir,
		ResultsDir:    cfg.Helmet.ResultsDir,
		ViolationDir:  cfg.Helmet.ViolationDir,
		Interval:      cfg.Helmet.Interval,
		RecentWindow:  cfg.Helmet.RecentWindow,
		ConfThreshold: cfg.Helmet.ConfThreshold,
		MaxResults:    cfg.Helmet.MaxResults,
		MaxViolations: cfg.Helmet.MaxViolations,
	}, helmetDet, m)

	if cfg.Database.Enabled {
		gdb, err := db.Open(cfg.Database.DSN, log)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open database")
		}
		repo := repository.NewPlateRepository(gdb)
		scanner.SetPersister(service.NewPlateService(repo, log))
	}

	roi := video.NewROI(nil)
	stream := internalhttp.NewMJPEGStream()

	scheduler := video.NewScheduler(log, video.SchedulerConfig{
		DetectInterval: cfg.Video.DetectInterval,
		ConfThreshold:  cfg.Video.ConfThreshold,
		LiveFrameDelay: cfg.Video.LiveFrameDelay,
	}, source, vehicleDet, trk, extractor, roi, scanner, stream, m)

	router := internalhttp.NewRouter(log, cfg)
	router.GET(cfg.HTTP.MetricsPath, gin.WrapH(m.Handler()))

	control := internalhttp.NewControlHandler(scheduler, source, scanner,
		extractor, roi, stream, cfg.Helmet.ViolationDir, log)
	control.Register(router, internalhttp.JWTAuth(cfg.HTTP.JWTSecret))

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

	log.Info().Str("source", cfg.Video.Source).Msg("frame loop starting")
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("frame loop failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("videoserver stopped")
}
