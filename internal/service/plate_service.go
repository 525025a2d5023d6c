package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"safeheads/internal/domain/violation"
	"safeheads/internal/plate"
	"safeheads/internal/repository"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// PlateService persists resolved plates and violation events and answers
// the query API. It is the Persister of the plate pipeline.
type PlateService struct {
	repo *repository.PlateRepository
	log  zerolog.Logger
}

func NewPlateService(repo *repository.PlateRepository, log zerolog.Logger) *PlateService {
	return &PlateService{
		repo: repo,
		log:  log,
	}
}

func (s *PlateService) SavePlate(ctx context.Context, rec violation.PlateRecord) error {
	if rec.NormalizedPlate == "" {
		return fmt.Errorf("%w: normalized plate is required", ErrInvalidInput)
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: record id is required", ErrInvalidInput)
	}

	plateID, err := s.repo.GetOrCreatePlate(ctx, rec.NormalizedPlate, rec.RawPlate)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get or create plate")
		return fmt.Errorf("failed to get or create plate: %w", err)
	}

	rawPayload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := s.repo.CreatePlateRecord(ctx, plateID, rec, rawPayload); err != nil {
		s.log.Error().
			Err(err).
			Str("plate", rec.NormalizedPlate).
			Str("source_file", rec.SourceFile).
			Msg("failed to create plate record")
		return fmt.Errorf("failed to create plate record: %w", err)
	}

	s.log.Info().
		Str("record_id", rec.ID).
		Int64("plate_id", plateID).
		Str("plate", rec.NormalizedPlate).
		Str("raw_plate", rec.RawPlate).
		Str("vehicle_id", rec.VehicleID).
		Time("resolved_at", rec.ResolvedAt).
		Msg("saved plate record to database")

	return nil
}

func (s *PlateService) SaveViolation(ctx context.Context, rec violation.Record) error {
	if rec.ViolationFile == "" {
		return fmt.Errorf("%w: violation file is required", ErrInvalidInput)
	}
	if err := s.repo.CreateViolationEvent(ctx, rec); err != nil {
		s.log.Error().
			Err(err).
			Str("violation_file", rec.ViolationFile).
			Msg("failed to create violation event")
		return fmt.Errorf("failed to create violation event: %w", err)
	}
	return nil
}

func (s *PlateService) FindPlates(ctx context.Context, plateQuery string) ([]PlateInfo, error) {
	normalized := plate.Normalize(plateQuery)
	if normalized == plate.NoPlate || normalized == "" {
		return nil, fmt.Errorf("%w: plate query cannot be empty", ErrInvalidInput)
	}

	plates, err := s.repo.FindPlatesByNormalized(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find plates: %w", err)
	}

	result := make([]PlateInfo, 0, len(plates))
	for _, p := range plates {
		lastRecordTime, _ := s.repo.GetLastRecordTimeForPlate(ctx, p.ID)
		result = append(result, PlateInfo{
			ID:             p.ID,
			Number:         p.Number,
			Normalized:     p.Normalized,
			LastRecordTime: lastRecordTime,
		})
	}

	return result, nil
}

func (s *PlateService) FindRecords(ctx context.Context, plateQuery *string, from, to *string, limit, offset int) ([]RecordInfo, error) {
	var normalizedPlate *string
	if plateQuery != nil {
		normalized := plate.Normalize(*plateQuery)
		if normalized != plate.NoPlate && normalized != "" {
			normalizedPlate = &normalized
		}
	}

	var fromTime, toTime *time.Time
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		fromTime = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		toTime = &t
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.repo.FindRecords(ctx, normalizedPlate, fromTime, toTime, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find records: %w", err)
	}

	result := make([]RecordInfo, 0, len(records))
	for _, r := range records {
		result = append(result, RecordInfo{
			ID:              r.ID,
			PlateID:         r.PlateID,
			SourceFile:      r.SourceFile,
			EnhancedFile:    r.EnhancedFile,
			VehicleID:       r.VehicleID,
			Width:           r.Width,
			Height:          r.Height,
			Confidence:      r.Confidence,
			NoHelmetCount:   r.NoHelmetCount,
			RawPlate:        r.RawPlate,
			NormalizedPlate: r.NormalizedPlate,
			Model:           r.Model,
			ResolvedAt:      r.ResolvedAt,
		})
	}

	return result, nil
}

// CleanupOldRecords deletes plate records older than the given number of days.
func (s *PlateService) CleanupOldRecords(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}
	deleted, err := s.repo.DeleteOldRecords(ctx, days)
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old records")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old records")
	}
	return deleted, nil
}

type PlateInfo struct {
	ID             int64      `json:"id"`
	Number         string     `json:"number"`
	Normalized     string     `json:"normalized"`
	LastRecordTime *time.Time `json:"last_record_time,omitempty"`
}

type RecordInfo struct {
	ID              string    `json:"id"`
	PlateID         *int64    `json:"plate_id,omitempty"`
	SourceFile      string    `json:"source_file"`
	EnhancedFile    *string   `json:"enhanced_file,omitempty"`
	VehicleID       *string   `json:"vehicle_id,omitempty"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Confidence      *float64  `json:"confidence,omitempty"`
	NoHelmetCount   *int      `json:"no_helmet_count,omitempty"`
	RawPlate        string    `json:"raw_plate"`
	NormalizedPlate string    `json:"normalized_plate"`
	Model           *string   `json:"model,omitempty"`
	ResolvedAt      time.Time `json:"resolved_at"`
}
