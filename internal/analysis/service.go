// Package analysis runs one questionnaire through the recommendation engine
// and the narrative generator.
package analysis

import (
	"context"
	"time"

	"mirror-backend/internal/diagnosis"
	"mirror-backend/internal/narrative"
	"mirror-backend/internal/shared/metrics"
	"mirror-backend/internal/shared/telemetry"
)

const defaultNarrativeTimeout = 45 * time.Second

var disclaimers = map[diagnosis.Locale]string{
	diagnosis.LocaleEN: "This service provides cosmetic information derived from the details you entered and cannot replace a medical diagnosis. Accurate care requires an in-person consultation with a specialist.",
	diagnosis.LocaleKO: "본 서비스는 입력된 정보를 기반으로 미용 정보를 제공하는 AI 분석이며, 의학적 진단을 대체할 수 없습니다. 정확한 진료는 반드시 전문의와의 대면 상담을 통해 이루어져야 합니다.",
}

var consultationNotices = map[diagnosis.Locale]string{
	diagnosis.LocaleEN: "We could not find a procedure that fits your current condition. We recommend an in-person consultation.",
	diagnosis.LocaleKO: "분석 결과, 현재 상태에 적합한 추천 시술을 찾지 못했습니다. 내원 상담을 권장합니다.",
}

// Input is one analysis request.
type Input struct {
	Questionnaire diagnosis.Input
	Locale        diagnosis.Locale
	Photos        []narrative.Photo
}

// Report is the full customer-facing result.
type Report struct {
	Locale            diagnosis.Locale `json:"locale"`
	Result            diagnosis.Result `json:"result"`
	Narrative         string           `json:"narrative"`
	NarrativeSource   string           `json:"narrativeSource"`
	Provider          string           `json:"provider,omitempty"`
	Model             string           `json:"model,omitempty"`
	PromptHash        string           `json:"promptHash,omitempty"`
	NeedsConsultation bool             `json:"needsConsultation"`
	Notice            string           `json:"notice,omitempty"`
	Disclaimer        string           `json:"disclaimer"`
}

// Service evaluates questionnaires.
type Service struct {
	Generator        narrative.Generator
	NarrativeTimeout time.Duration
	DefaultLocale    diagnosis.Locale
}

// Analyze validates the questionnaire, evaluates the rule table and asks the
// generator for a narrative. Only invalid input produces an error.
func (s *Service) Analyze(ctx context.Context, in Input) (Report, error) {
	locale := in.Locale
	if locale == "" {
		locale = s.DefaultLocale
	}
	if locale == "" {
		locale = diagnosis.LocaleEN
	}

	result, err := diagnosis.NewEngine(locale).Evaluate(in.Questionnaire)
	if err != nil {
		return Report{}, err
	}
	metrics.IncAnalysis(string(result.Rule))

	timeout := s.NarrativeTimeout
	if timeout <= 0 {
		timeout = defaultNarrativeTimeout
	}
	nctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n := narrative.Narrate(nctx, s.Generator, narrative.Request{
		Input:  in.Questionnaire,
		Result: result,
		Locale: locale,
		Photos: in.Photos,
	})

	report := Report{
		Locale:            locale,
		Result:            result,
		Narrative:         n.Text,
		NarrativeSource:   n.Source,
		Provider:          n.Provider,
		Model:             n.Model,
		PromptHash:        n.PromptHash,
		NeedsConsultation: result.Empty(),
		Disclaimer:        disclaimers[locale],
	}
	if report.NeedsConsultation {
		report.Notice = consultationNotices[locale]
	}

	telemetry.Info("analysis.complete", map[string]any{
		"rule":             result.Rule,
		"recommendations":  len(result.Recommendations),
		"narrative_source": n.Source,
		"locale":           locale,
		"photos":           len(in.Photos),
	})
	return report, nil
}

// Disclaimer returns the legal notice for a locale.
func Disclaimer(locale diagnosis.Locale) string {
	if d, ok := disclaimers[locale]; ok {
		return d
	}
	return disclaimers[diagnosis.LocaleEN]
}
