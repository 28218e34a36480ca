package narrative

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"text/template"

	"mirror-backend/internal/diagnosis"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var templates = map[diagnosis.Locale]*template.Template{
	diagnosis.LocaleEN: template.Must(template.ParseFS(promptFS, "prompts/consultant_en.tmpl")),
	diagnosis.LocaleKO: template.Must(template.ParseFS(promptFS, "prompts/consultant_ko.tmpl")),
}

var skinLabels = map[diagnosis.Locale]map[diagnosis.SkinType]string{
	diagnosis.LocaleEN: {
		diagnosis.SkinDry:         "dry",
		diagnosis.SkinOily:        "oily",
		diagnosis.SkinCombination: "combination",
		diagnosis.SkinSensitive:   "sensitive / prone to redness",
	},
	diagnosis.LocaleKO: {
		diagnosis.SkinDry:         "건성",
		diagnosis.SkinOily:        "지성",
		diagnosis.SkinCombination: "복합성",
		diagnosis.SkinSensitive:   "민감성/홍조",
	},
}

var budgetLabels = map[diagnosis.Locale]map[diagnosis.Budget]string{
	diagnosis.LocaleEN: {
		diagnosis.BudgetLow:    "low (under 500k KRW)",
		diagnosis.BudgetMedium: "medium (500k-1.5M KRW)",
		diagnosis.BudgetHigh:   "high (over 1.5M KRW)",
	},
	diagnosis.LocaleKO: {
		diagnosis.BudgetLow:    "저예산 (50만 원 이하)",
		diagnosis.BudgetMedium: "중간예산 (50~150만 원)",
		diagnosis.BudgetHigh:   "고예산 (150만 원 이상)",
	},
}

type promptData struct {
	Age             int
	SkinType        string
	Sagging         int
	Wrinkle         int
	Budget          string
	Downtime        bool
	HasPhotos       bool
	PhotoCount      int
	Logic           string
	Recommendations []diagnosis.Recommendation
}

// BuildPrompt renders the consultant prompt for the request locale.
func BuildPrompt(req Request) (string, error) {
	locale := req.Locale
	tmpl, ok := templates[locale]
	if !ok {
		locale = diagnosis.LocaleEN
		tmpl = templates[locale]
	}

	data := promptData{
		Age:             req.Input.Age,
		SkinType:        label(skinLabels[locale], req.Input.SkinType),
		Sagging:         req.Input.SaggingLevel,
		Wrinkle:         req.Input.WrinkleLevel,
		Budget:          label(budgetLabels[locale], req.Input.Budget),
		Downtime:        req.Input.DowntimeOK,
		HasPhotos:       len(req.Photos) > 0,
		PhotoCount:      len(req.Photos),
		Logic:           req.Result.Logic,
		Recommendations: req.Result.Recommendations,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// HashPrompt returns the hex SHA-256 of a rendered prompt.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func label[K ~string](labels map[K]string, key K) string {
	if v, ok := labels[key]; ok {
		return v
	}
	return string(key)
}
