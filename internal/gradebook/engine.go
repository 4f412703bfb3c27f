// Package gradebook implements deterministic grade arithmetic: percentages,
// letter lookups, category averages with drop-lowest policies, weighted final
// grades and GPA. Every function is pure; callers supply all inputs and the
// package owns no state.
package gradebook

import (
	"errors"
	"fmt"
	"sort"

	"github.com/classpulse/classpulse-api/internal/models"
)

// ErrInvalidInput indicates caller-supplied numbers that cannot be graded,
// such as a non-positive points-possible value.
var ErrInvalidInput = errors.New("invalid grading input")

// ErrNoMatchingRange indicates a grade scale with a gap: the percentage fell
// below every configured range minimum.
var ErrNoMatchingRange = errors.New("no matching grade scale range")

// Percentage computes the score percentage for a single grade. Extra credit
// is added on top of points earned, so results above 100 are legal.
func Percentage(pointsEarned, pointsPossible, extraCredit float64) (float64, error) {
	if pointsPossible <= 0 {
		return 0, fmt.Errorf("%w: points possible must be positive, got %v", ErrInvalidInput, pointsPossible)
	}

	return (pointsEarned + extraCredit) / pointsPossible * 100, nil
}

// ValidateRanges checks that a scale is usable: non-empty, and exhaustive
// from zero upward so every non-negative percentage resolves.
func ValidateRanges(ranges []models.GradeRange) error {
	if len(ranges) == 0 {
		return fmt.Errorf("%w: grade scale has no ranges", ErrInvalidInput)
	}

	lowest := ranges[0].MinPercent
	for _, r := range ranges[1:] {
		if r.MinPercent < lowest {
			lowest = r.MinPercent
		}
	}
	if lowest > 0 {
		return fmt.Errorf("%w: grade scale does not cover 0%%", ErrInvalidInput)
	}

	return nil
}

// LetterFor resolves a percentage against the scale, scanning ranges from the
// highest minimum down and returning the first range the percentage meets.
// A misconfigured scale with a gap yields ErrNoMatchingRange rather than a
// silent default.
func LetterFor(percent float64, ranges []models.GradeRange) (models.GradeRange, error) {
	if len(ranges) == 0 {
		return models.GradeRange{}, fmt.Errorf("%w: grade scale has no ranges", ErrInvalidInput)
	}

	ordered := make([]models.GradeRange, len(ranges))
	copy(ordered, ranges)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MinPercent > ordered[j].MinPercent
	})

	for _, r := range ordered {
		if percent >= r.MinPercent {
			return r, nil
		}
	}

	return models.GradeRange{}, fmt.Errorf("%w: %.2f%% below every range minimum", ErrNoMatchingRange, percent)
}

// CategoryAverage computes the average for the grades that belong to the
// category, honoring the category's calculation method and drop-lowest
// policy. An empty category yields 0, not an error; callers that must tell
// "no grades yet" apart from a genuine zero check the grade count themselves.
func CategoryAverage(grades []models.Grade, category models.GradeCategory) float64 {
	scored := collectPercentages(grades, category.ID)
	if len(scored) == 0 {
		return 0
	}

	switch category.Method {
	case models.CategoryMethodTotalPoints:
		return totalPointsRatio(grades, category.ID)
	case models.CategoryMethodWeightedAverage:
		if avg, ok := weightedAverage(scored); ok {
			return avg
		}
		// No grade in the category defines a weight; degrade to simple average.
		return simpleAverage(scored, category.DropLowest)
	default:
		return simpleAverage(scored, category.DropLowest)
	}
}

type scoredGrade struct {
	percent float64
	weight  *float64
}

func collectPercentages(grades []models.Grade, categoryID uint) []scoredGrade {
	scored := make([]scoredGrade, 0, len(grades))
	for _, g := range grades {
		if g.CategoryID != categoryID {
			continue
		}
		pct, err := Percentage(g.PointsEarned, g.PointsPossible, g.ExtraCredit)
		if err != nil {
			// A grade with no possible points cannot contribute to an average.
			continue
		}
		scored = append(scored, scoredGrade{percent: pct, weight: g.Weight})
	}
	return scored
}

func simpleAverage(scored []scoredGrade, dropLowest int) float64 {
	ordered := make([]scoredGrade, len(scored))
	copy(ordered, scored)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].percent > ordered[j].percent
	})

	// Dropping may never empty the category.
	if dropLowest > 0 && len(ordered) > dropLowest {
		ordered = ordered[:len(ordered)-dropLowest]
	}

	var sum float64
	for _, s := range ordered {
		sum += s.percent
	}
	return sum / float64(len(ordered))
}

func totalPointsRatio(grades []models.Grade, categoryID uint) float64 {
	var earned, possible float64
	for _, g := range grades {
		if g.CategoryID != categoryID || g.PointsPossible <= 0 {
			continue
		}
		earned += g.PointsEarned + g.ExtraCredit
		possible += g.PointsPossible
	}
	if possible <= 0 {
		return 0
	}
	return earned / possible * 100
}

// weightedAverage averages by per-grade weight. It reports false when no
// grade defines a weight so the caller can fall back to a simple average.
// Grades without an explicit weight count with weight 1.
func weightedAverage(scored []scoredGrade) (float64, bool) {
	anyWeighted := false
	for _, s := range scored {
		if s.weight != nil {
			anyWeighted = true
			break
		}
	}
	if !anyWeighted {
		return 0, false
	}

	var weightedSum, totalWeight float64
	for _, s := range scored {
		w := 1.0
		if s.weight != nil {
			w = *s.weight
		}
		if w <= 0 {
			continue
		}
		weightedSum += s.percent * w
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 0, false
	}
	return weightedSum / totalWeight, true
}

// CategoryBreakdown reports one category's contribution to a final grade.
type CategoryBreakdown struct {
	CategoryID uint    `json:"category_id"`
	Name       string  `json:"name"`
	Average    float64 `json:"average"`
	Weight     float64 `json:"weight"`
	GradeCount int     `json:"grade_count"`
}

// Result is the outcome of a final grade computation.
type Result struct {
	FinalPercent float64             `json:"final_percent"`
	Letter       string              `json:"letter"`
	GradePoint   float64             `json:"grade_point"`
	Categories   []CategoryBreakdown `json:"categories"`
}

// FinalGrade computes the weighted final grade across categories. Only
// categories marked for inclusion that hold at least one scorable grade
// participate;
// the weighted sum is normalized by the accumulated weight, so weights do not
// have to sum to 1 and a partially configured class still averages sanely.
func FinalGrade(grades []models.Grade, categories []models.GradeCategory, ranges []models.GradeRange) (Result, error) {
	if err := ValidateRanges(ranges); err != nil {
		return Result{}, err
	}

	var weightedSum, totalWeight float64
	breakdown := make([]CategoryBreakdown, 0, len(categories))

	for _, category := range categories {
		// Count only grades that yield a usable percentage; rows without
		// positive points possible must not pull the category into the
		// weighted sum with a zero average.
		count := len(collectPercentages(grades, category.ID))

		average := CategoryAverage(grades, category)
		breakdown = append(breakdown, CategoryBreakdown{
			CategoryID: category.ID,
			Name:       category.Name,
			Average:    average,
			Weight:     category.Weight,
			GradeCount: count,
		})

		if !category.IncludeInFinal || count == 0 || category.Weight <= 0 {
			continue
		}

		weightedSum += average * category.Weight
		totalWeight += category.Weight
	}

	final := 0.0
	if totalWeight > 0 {
		final = weightedSum / totalWeight
	}

	resolved, err := LetterFor(final, ranges)
	if err != nil {
		return Result{}, err
	}

	return Result{
		FinalPercent: final,
		Letter:       resolved.Letter,
		GradePoint:   resolved.GradePoint,
		Categories:   breakdown,
	}, nil
}

// CourseGrade pairs one course's earned grade points with its credit hours.
type CourseGrade struct {
	GradePoint  float64
	CreditHours float64
}

// GPA computes a credit-hour weighted grade point average. Zero total
// credits yields 0.
func GPA(courses []CourseGrade) float64 {
	var pointSum, creditSum float64
	for _, course := range courses {
		if course.CreditHours <= 0 {
			continue
		}
		pointSum += course.GradePoint * course.CreditHours
		creditSum += course.CreditHours
	}
	if creditSum <= 0 {
		return 0
	}
	return pointSum / creditSum
}
