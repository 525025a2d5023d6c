package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"safeheads/internal/domain/violation"
)

type PlateRepository struct {
	db *gorm.DB
}

func NewPlateRepository(db *gorm.DB) *PlateRepository {
	return &PlateRepository{db: db}
}

type Plate struct {
	ID         int64  `gorm:"primaryKey"`
	Number     string `gorm:"not null"`
	Normalized string `gorm:"not null;uniqueIndex"`
	CreatedAt  time.Time
}

type PlateRecord struct {
	ID              string `gorm:"primaryKey;type:uuid"`
	PlateID         *int64
	SourceFile      string `gorm:"not null"`
	EnhancedFile    *string
	VehicleID       *string
	Width           int
	Height          int
	Confidence      *float64
	NoHelmetCount   *int
	RawPlate        string `gorm:"not null"`
	NormalizedPlate string `gorm:"not null"`
	Model           *string
	RawPayload      datatypes.JSON `gorm:"type:jsonb"`
	ResolvedAt      time.Time      `gorm:"not null"`
	CreatedAt       time.Time
}

type ViolationEvent struct {
	ID            int64  `gorm:"primaryKey"`
	CropFile      string `gorm:"not null"`
	ViolationFile string `gorm:"not null"`
	VehicleID     *string
	NoHelmetCount int       `gorm:"not null"`
	DetectedAt    time.Time `gorm:"not null"`
	CreatedAt     time.Time
}

func (r *PlateRepository) GetOrCreatePlate(ctx context.Context, normalized, original string) (int64, error) {
	var plate Plate
	err := r.db.WithContext(ctx).Where("normalized = ?", normalized).First(&plate).Error
	if err == nil {
		return plate.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, err
	}

	plate = Plate{
		Number:     original,
		Normalized: normalized,
		CreatedAt:  time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&plate).Error; err != nil {
		return 0, err
	}
	return plate.ID, nil
}

func (r *PlateRepository) CreatePlateRecord(ctx context.Context, plateID int64, rec violation.PlateRecord, rawPayload []byte) error {
	row := PlateRecord{
		ID:              rec.ID,
		PlateID:         &plateID,
		SourceFile:      rec.SourceFile,
		Width:           rec.Width,
		Height:          rec.Height,
		RawPlate:        rec.RawPlate,
		NormalizedPlate: rec.NormalizedPlate,
		ResolvedAt:      rec.ResolvedAt,
		CreatedAt:       time.Now(),
	}

	if rec.EnhancedFile != "" {
		row.EnhancedFile = &rec.EnhancedFile
	}
	if rec.VehicleID != "" {
		row.VehicleID = &rec.VehicleID
	}
	if rec.Confidence != 0 {
		row.Confidence = &rec.Confidence
	}
	if rec.NoHelmetCount >= 0 {
		row.NoHelmetCount = &rec.NoHelmetCount
	}
	if rec.Model != "" {
		row.Model = &rec.Model
	}
	if len(rawPayload) > 0 {
		row.RawPayload = datatypes.JSON(rawPayload)
	}

	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *PlateRepository) CreateViolationEvent(ctx context.Context, rec violation.Record) error {
	row := ViolationEvent{
		CropFile:      rec.CropFile,
		ViolationFile: rec.ViolationFile,
		NoHelmetCount: rec.NoHelmetCount,
		DetectedAt:    rec.Timestamp,
		CreatedAt:     time.Now(),
	}
	if rec.VehicleID != "" && rec.VehicleID != "Unknown" {
		row.VehicleID = &rec.VehicleID
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *PlateRepository) FindPlatesByNormalized(ctx context.Context, normalized string) ([]Plate, error) {
	var plates []Plate
	err := r.db.WithContext(ctx).
		Where("normalized = ?", normalized).
		Find(&plates).Error
	return plates, err
}

func (r *PlateRepository) FindRecords(ctx context.Context, normalizedPlate *string, from, to *time.Time, limit, offset int) ([]PlateRecord, error) {
	query := r.db.WithContext(ctx).Model(&PlateRecord{})

	if normalizedPlate != nil {
		query = query.Where("normalized_plate = ?", *normalizedPlate)
	}
	if from != nil {
		query = query.Where("resolved_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("resolved_at <= ?", *to)
	}

	query = query.Order("resolved_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var records []PlateRecord
	err := query.Find(&records).Error
	return records, err
}

func (r *PlateRepository) GetLastRecordTimeForPlate(ctx context.Context, plateID int64) (*time.Time, error) {
	var rec PlateRecord
	err := r.db.WithContext(ctx).
		Where("plate_id = ?", plateID).
		Order("resolved_at DESC").
		First(&rec).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rec.ResolvedAt, nil
}

func (r *PlateRepository) DeleteOldRecords(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res := r.db.WithContext(ctx).
		Where("resolved_at < ?", cutoff).
		Delete(&PlateRecord{})
	return res.RowsAffected, res.Error
}
