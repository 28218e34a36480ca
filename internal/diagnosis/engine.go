package diagnosis

import "strings"

// Engine evaluates questionnaire answers against the rule table.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	catalog Catalog
}

// NewEngine returns an engine that renders text for the given locale.
func NewEngine(locale Locale) *Engine {
	return &Engine{catalog: CatalogFor(locale)}
}

var defaultEngine = NewEngine(LocaleEN)

// Evaluate runs the English engine over in.
func Evaluate(in Input) (Result, error) {
	return defaultEngine.Evaluate(in)
}

// Locale reports the locale the engine renders.
func (e *Engine) Locale() Locale {
	return e.catalog.Locale
}

// Evaluate validates in and maps it to recommended procedures.
func (e *Engine) Evaluate(in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	return e.evaluate(in), nil
}

func (e *Engine) evaluate(in Input) Result {
	c := e.catalog
	recs := make([]Recommendation, 0, 2)
	logic := make([]string, 0, 3)
	rule := RuleNone

	switch {
	case in.SaggingLevel >= 4 || (in.Age >= 40 && in.SaggingLevel >= 3):
		rule = RuleSevereSagging
		if in.Budget == BudgetHigh {
			recs = append(recs, c.recommend(ProcHIFUPremium), c.recommend(ProcRFPremium))
			logic = append(logic, c.fragments[fragSeverePremium])
		} else {
			recs = append(recs, c.recommend(ProcHIFUDomestic))
			logic = append(logic, c.fragments[fragSevereBudget])
		}
	case in.SaggingLevel >= 2 && in.Age >= 30:
		rule = RuleModerateSagging
		recs = append(recs, c.recommend(ProcFatTighten))
		logic = append(logic, c.fragments[fragModerate])
		if in.WrinkleLevel >= 3 {
			recs = append(recs, c.recommend(ProcSkinBooster))
			logic = append(logic, c.fragments[fragModerateBooster])
		}
	case in.Age < 30 || (in.SaggingLevel <= 2 && in.WrinkleLevel <= 2):
		rule = RulePreventive
		recs = append(recs, c.recommend(ProcMaintenance), c.recommend(ProcNeuromod))
		logic = append(logic, c.fragments[fragPreventive])
	}
	// No branch matched: age >= 30 with minimal sagging but visible wrinkles.
	// The empty list is a legitimate outcome and is routed to an in-person consultation.

	if in.SkinType == SkinSensitive {
		logic = append(logic, c.fragments[fragSensitive])
		for i := range recs {
			if recs[i].EnergyBased {
				recs[i].Intensity = c.AdjustedIntensity
			}
		}
	}

	return Result{
		Recommendations: recs,
		Logic:           strings.Join(logic, " "),
		Rule:            rule,
	}
}
