package leads

import (
	"time"

	"mirror-backend/internal/diagnosis"
)

func sampleLead(id string, created time.Time) Lead {
	return Lead{
		ID:             id,
		SessionID:      "sess-" + id,
		Name:           "Kim Minji",
		Phone:          "010-1234-5678",
		PreferredTime:  "weekday evenings",
		MarketingOptIn: true,
		Locale:         diagnosis.LocaleKO,
		Concerns:       []string{"sagging", "wrinkles"},
		Questionnaire: diagnosis.Input{
			Age:          40,
			SkinType:     diagnosis.SkinDry,
			SaggingLevel: 3,
			WrinkleLevel: 2,
			Budget:       diagnosis.BudgetHigh,
			DowntimeOK:   true,
		},
		Rule: diagnosis.RuleSevereSagging,
		Recommendations: []diagnosis.Recommendation{
			{ID: "hifu_premium", Name: "Ulthera", Intensity: "400-600 shots", Reason: "r", EnergyBased: true},
			{ID: "rf_premium", Name: "Thermage FLX", Intensity: "600 shots", Reason: "r", EnergyBased: true},
		},
		Logic:           "logic",
		Narrative:       "narrative",
		NarrativeSource: "rules",
		PhotoKeys:       []string{"ns/front.jpg"},
		Status:          StatusNew,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}
