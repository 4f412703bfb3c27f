package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// GradeRange maps a percentage floor to a letter grade and GPA points. The
// range covers [MinPercent, next higher range's MinPercent); the top range is
// unbounded so extra credit above 100% still resolves.
type GradeRange struct {
	Letter     string  `json:"letter"`
	MinPercent float64 `json:"min_percent"`
	GradePoint float64 `json:"grade_point"`
}

// GradeScale is the per-class percentage-to-letter mapping. Ranges are stored
// as a JSON document so a teacher can configure arbitrary scales without a
// schema change.
type GradeScale struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ClassID   uint           `gorm:"not null;uniqueIndex" json:"class_id"`
	Name      string         `gorm:"size:128;not null" json:"name"`
	Ranges    datatypes.JSON `gorm:"type:json" json:"ranges"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RangeList decodes the stored ranges.
func (s GradeScale) RangeList() ([]GradeRange, error) {
	if len(s.Ranges) == 0 {
		return nil, fmt.Errorf("grade scale %d has no ranges", s.ID)
	}

	var ranges []GradeRange
	if err := json.Unmarshal(s.Ranges, &ranges); err != nil {
		return nil, fmt.Errorf("failed to decode grade scale ranges: %w", err)
	}

	return ranges, nil
}

// DefaultRanges returns the standard ten-point A-F scale used when a class
// has not configured its own.
func DefaultRanges() []GradeRange {
	return []GradeRange{
		{Letter: "A", MinPercent: 90, GradePoint: 4.0},
		{Letter: "B", MinPercent: 80, GradePoint: 3.0},
		{Letter: "C", MinPercent: 70, GradePoint: 2.0},
		{Letter: "D", MinPercent: 60, GradePoint: 1.0},
		{Letter: "F", MinPercent: 0, GradePoint: 0.0},
	}
}

// EncodeRanges serializes ranges for storage on a GradeScale.
func EncodeRanges(ranges []GradeRange) (datatypes.JSON, error) {
	payload, err := json.Marshal(ranges)
	if err != nil {
		return nil, fmt.Errorf("failed to encode grade scale ranges: %w", err)
	}
	return datatypes.JSON(payload), nil
}
