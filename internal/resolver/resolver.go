// Package resolver is the plate pipeline: it watches the violation
// directory, enhances each new artifact, reads the plate through the OCR
// chain, and turns valid, first-seen plates into records.
package resolver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"safeheads/internal/crop"
	"safeheads/internal/domain/violation"
	"safeheads/internal/plate"
)

// Enhancer prepares an artifact for OCR.
type Enhancer interface {
	Enhance(srcPath, dstPath string) error
}

// PlateReader reads a plate from an image, returning the raw text and
// the model that produced it.
type PlateReader interface {
	ReadPlate(ctx context.Context, imagePath string) (text, model string)
}

// Persister stores accepted plate records.
type Persister interface {
	SavePlate(ctx context.Context, rec violation.PlateRecord) error
}

// Observer counts pipeline outcomes for metrics export.
type Observer interface {
	PlateResolved()
	PlateDuplicate()
	PlateRejected()
}

// Config holds the plate pipeline settings.
type Config struct {
	ViolationDir string
	EnhancedDir  string
	// ArtifactPrefix is the crop prefix the video process writes; only
	// violation artifacts carrying it are picked up.
	ArtifactPrefix string
	// PollInterval is how often the violation directory is rescanned.
	PollInterval time.Duration
	// SettleDelay is waited before reading a newly discovered artifact,
	// so a file still being written is picked up whole.
	SettleDelay time.Duration
	// MinResolution is the minimum width*height an artifact needs for OCR
	// to be worth attempting.
	MinResolution int
	// MaxHistory caps the in-memory record list.
	MaxHistory int
	// MaxParseAttempts bounds retries for artifacts whose filename cannot
	// be parsed before they are dropped.
	MaxParseAttempts int
}

// DefaultConfig polls every two seconds, requires 200x400 pixels, and
// keeps the last 1000 records.
func DefaultConfig() Config {
	return Config{
		ViolationDir:     "violation",
		EnhancedDir:      "enhanced",
		ArtifactPrefix:   crop.DefaultPrefix,
		PollInterval:     2 * time.Second,
		SettleDelay:      500 * time.Millisecond,
		MinResolution:    200 * 400,
		MaxHistory:       1000,
		MaxParseAttempts: 5,
	}
}

// Resolver consumes violation artifacts and produces plate records.
// Plates are deduplicated for the lifetime of the process.
type Resolver struct {
	cfg    Config
	enh    Enhancer
	reader PlateReader
	store  Persister
	obs    Observer
	log    zerolog.Logger

	mu         sync.Mutex
	processed  map[string]bool
	parseFails map[string]int
	lowRes     map[string]bool
	seenPlates map[string]bool
	records    []violation.PlateRecord

	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a resolver. store and obs may be nil.
func New(log zerolog.Logger, cfg Config, enh Enhancer, reader PlateReader, store Persister, obs Observer) *Resolver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MinResolution <= 0 {
		cfg.MinResolution = 200 * 400
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 1000
	}
	if cfg.MaxParseAttempts <= 0 {
		cfg.MaxParseAttempts = 5
	}
	if cfg.ArtifactPrefix == "" {
		cfg.ArtifactPrefix = crop.DefaultPrefix
	}
	return &Resolver{
		cfg:        cfg,
		enh:        enh,
		reader:     reader,
		store:      store,
		obs:        obs,
		log:        log,
		processed:  make(map[string]bool),
		parseFails: make(map[string]int),
		lowRes:     make(map[string]bool),
		seenPlates: make(map[string]bool),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// SetClock replaces the time source and sleep function. Test hook.
func (r *Resolver) SetClock(now func() time.Time, sleep func(time.Duration)) {
	r.now = now
	r.sleep = sleep
}

// Records returns the accepted plate records, newest last.
func (r *Resolver) Records() []violation.PlateRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]violation.PlateRecord, len(r.records))
	copy(out, r.records)
	return out
}

// ProcessedCount returns how many artifacts have been consumed.
func (r *Resolver) ProcessedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processed)
}

// SeenPlates returns how many distinct plates were accepted so far.
func (r *Resolver) SeenPlates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seenPlates)
}

// Run polls the violation directory until the context is cancelled.
// Artifacts that were already present at startup are processed too.
func (r *Resolver) Run(ctx context.Context) error {
	for {
		if err := r.ProcessOnce(ctx); err != nil && !os.IsNotExist(err) {
			r.log.Warn().Err(err).Msg("violation scan failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// ProcessOnce scans the violation directory and processes every pending
// artifact. Exported so tests and callers can drive the pipeline without
// the poll loop.
func (r *Resolver) ProcessOnce(ctx context.Context) error {
	r.mu.Lock()
	processed := make(map[string]bool, len(r.processed))
	for name := range r.processed {
		processed[name] = true
	}
	r.mu.Unlock()

	prefix := crop.ViolationPrefix + r.cfg.ArtifactPrefix + "_"
	pending, err := pendingArtifacts(r.cfg.ViolationDir, prefix, processed)
	if err != nil {
		return err
	}

	for _, name := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if r.cfg.SettleDelay > 0 {
			r.sleep(r.cfg.SettleDelay)
		}
		r.processArtifact(ctx, name)
	}
	return nil
}

func (r *Resolver) processArtifact(ctx context.Context, name string) {
	log := r.log.With().Str("artifact", name).Logger()

	meta, ok := crop.ParseViolationFilename(name)
	if !ok {
		r.mu.Lock()
		r.parseFails[name]++
		fails := r.parseFails[name]
		drop := fails >= r.cfg.MaxParseAttempts
		if drop {
			r.processed[name] = true
			delete(r.parseFails, name)
		}
		r.mu.Unlock()
		if drop {
			log.Warn().Int("attempts", fails).Msg("unparseable artifact dropped")
			r.rejected()
		} else {
			log.Debug().Int("attempts", fails).Msg("artifact name did not parse, will retry")
		}
		return
	}

	if meta.Resolution() < r.cfg.MinResolution {
		// Not marked processed: every scan offers the artifact again.
		// Logged and counted only on first sight.
		r.mu.Lock()
		first := !r.lowRes[name]
		r.lowRes[name] = true
		r.mu.Unlock()
		if first {
			log.Debug().
				Int("width", meta.Width).
				Int("height", meta.Height).
				Msg("artifact below minimum resolution, leaving pending")
			r.rejected()
		}
		return
	}

	srcPath := filepath.Join(r.cfg.ViolationDir, name)
	ocrPath := srcPath
	var enhancedName string
	if r.enh != nil {
		enhancedName = strings.TrimSuffix(name, ".jpg") + "_enhanced.jpg"
		dstPath := filepath.Join(r.cfg.EnhancedDir, enhancedName)
		if err := os.MkdirAll(r.cfg.EnhancedDir, 0o755); err == nil {
			if err := r.enh.Enhance(srcPath, dstPath); err != nil {
				log.Warn().Err(err).Msg("enhancement failed, reading original")
				enhancedName = ""
			} else {
				ocrPath = dstPath
			}
		}
	}

	raw, model := r.reader.ReadPlate(ctx, ocrPath)
	normalized := plate.Normalize(raw)

	if normalized == plate.NoPlate {
		log.Info().Str("raw", raw).Msg("no readable plate")
		r.markProcessed(name)
		r.rejected()
		return
	}
	if !plate.Valid(normalized) {
		log.Info().Str("plate", normalized).Msg("plate failed validation")
		r.markProcessed(name)
		r.rejected()
		return
	}

	r.mu.Lock()
	if r.seenPlates[normalized] {
		r.processed[name] = true
		r.mu.Unlock()
		log.Info().Str("plate", normalized).Msg("duplicate plate")
		if r.obs != nil {
			r.obs.PlateDuplicate()
		}
		return
	}
	r.seenPlates[normalized] = true
	r.processed[name] = true
	r.mu.Unlock()

	rec := violation.PlateRecord{
		ID:              uuid.NewString(),
		SourceFile:      name,
		EnhancedFile:    enhancedName,
		VehicleID:       meta.VehicleID,
		Width:           meta.Width,
		Height:          meta.Height,
		Confidence:      meta.Confidence,
		NoHelmetCount:   meta.NoHelmetCount,
		RawPlate:        raw,
		NormalizedPlate: normalized,
		Model:           model,
		ResolvedAt:      r.now(),
	}

	if r.store != nil {
		if err := r.store.SavePlate(ctx, rec); err != nil {
			log.Error().Err(err).Str("plate", normalized).Msg("could not persist plate record")
		}
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	if len(r.records) > r.cfg.MaxHistory {
		r.records = r.records[len(r.records)-r.cfg.MaxHistory:]
	}
	r.mu.Unlock()

	log.Info().
		Str("plate", normalized).
		Str("vehicle_id", meta.VehicleID).
		Str("model", model).
		Msg("plate resolved")
	if r.obs != nil {
		r.obs.PlateResolved()
	}
}

func (r *Resolver) markProcessed(name string) {
	r.mu.Lock()
	r.processed[name] = true
	r.mu.Unlock()
}

func (r *Resolver) rejected() {
	if r.obs != nil {
		r.obs.PlateRejected()
	}
}
