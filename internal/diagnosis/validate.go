package diagnosis

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidInput is wrapped by every validation failure.
var ErrInvalidInput = errors.New("invalid questionnaire input")

// FieldError describes one rejected field.
type FieldError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Issue)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Validate checks that every answer is inside the questionnaire domain.
func (in Input) Validate() error {
	var fields []FieldError
	if !slices.Contains(AgeBuckets, in.Age) {
		fields = append(fields, FieldError{Field: "age", Issue: fmt.Sprintf("must be one of %v", AgeBuckets)})
	}
	switch in.SkinType {
	case SkinDry, SkinOily, SkinCombination, SkinSensitive:
	default:
		fields = append(fields, FieldError{Field: "skinType", Issue: fmt.Sprintf("unknown skin type %q", in.SkinType)})
	}
	if in.SaggingLevel < MinLevel || in.SaggingLevel > MaxLevel {
		fields = append(fields, FieldError{Field: "saggingLevel", Issue: fmt.Sprintf("must be between %d and %d", MinLevel, MaxLevel)})
	}
	if in.WrinkleLevel < MinLevel || in.WrinkleLevel > MaxLevel {
		fields = append(fields, FieldError{Field: "wrinkleLevel", Issue: fmt.Sprintf("must be between %d and %d", MinLevel, MaxLevel)})
	}
	switch in.Budget {
	case BudgetLow, BudgetMedium, BudgetHigh:
	default:
		fields = append(fields, FieldError{Field: "budget", Issue: fmt.Sprintf("unknown budget %q", in.Budget)})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

var skinTypeLabels = map[string]SkinType{
	"dry":                        SkinDry,
	"oily":                       SkinOily,
	"combination":                SkinCombination,
	"sensitive":                  SkinSensitive,
	"sensitive/redness":          SkinSensitive,
	"sensitive-prone-to-redness": SkinSensitive,
	"건성":                         SkinDry,
	"지성":                         SkinOily,
	"복합성":                        SkinCombination,
	"민감성/홍조":                     SkinSensitive,
	"민감성":                        SkinSensitive,
}

var budgetLabels = map[string]Budget{
	"low":              BudgetLow,
	"medium":           BudgetMedium,
	"high":             BudgetHigh,
	"저예산 (50만 원 이하)":   BudgetLow,
	"중간예산 (50~150만 원)": BudgetMedium,
	"고예산 (150만 원 이상)":  BudgetHigh,
	"저예산":              BudgetLow,
	"중간예산":             BudgetMedium,
	"고예산":              BudgetHigh,
}

// ParseSkinType accepts canonical codes and the Korean form labels.
func ParseSkinType(raw string) (SkinType, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if st, ok := skinTypeLabels[key]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown skin type %q", ErrInvalidInput, raw)
}

// ParseBudget accepts canonical codes and the Korean form labels.
func ParseBudget(raw string) (Budget, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if b, ok := budgetLabels[key]; ok {
		return b, nil
	}
	return "", fmt.Errorf("%w: unknown budget %q", ErrInvalidInput, raw)
}

// ParseAge accepts "40", "40s" or "40대" and returns the decade bucket.
func ParseAge(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, "대")
	s = strings.TrimSuffix(s, "s")
	age, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !slices.Contains(AgeBuckets, age) {
		return 0, fmt.Errorf("%w: unknown age bucket %q", ErrInvalidInput, raw)
	}
	return age, nil
}

// ParseLevel parses a 1-5 concern level.
func ParseLevel(field, raw string) (int, error) {
	level, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || level < MinLevel || level > MaxLevel {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidInput, field, MinLevel, MaxLevel)
	}
	return level, nil
}

// ParseDowntime accepts booleans and the Korean yes/no labels.
func ParseDowntime(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y", "가능":
		return true, nil
	case "false", "0", "no", "n", "불가능", "":
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown downtime answer %q", ErrInvalidInput, raw)
	}
}
