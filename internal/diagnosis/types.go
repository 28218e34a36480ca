package diagnosis

// SkinType is the self-reported skin category from the questionnaire.
type SkinType string

const (
	SkinDry         SkinType = "dry"
	SkinOily        SkinType = "oily"
	SkinCombination SkinType = "combination"
	// SkinSensitive covers sensitive skin prone to redness.
	SkinSensitive SkinType = "sensitive"
)

// Budget is the per-session spend the customer is comfortable with.
type Budget string

const (
	BudgetLow    Budget = "low"
	BudgetMedium Budget = "medium"
	BudgetHigh   Budget = "high"
)

// RuleID names the primary branch of the rule table that produced a result.
type RuleID string

const (
	RuleSevereSagging   RuleID = "severe_sagging"
	RuleModerateSagging RuleID = "moderate_sagging"
	RulePreventive      RuleID = "preventive"
	RuleNone            RuleID = "none"
)

// Age buckets offered by the questionnaire, one per decade.
var AgeBuckets = []int{20, 30, 40, 50, 60}

const (
	MinLevel = 1
	MaxLevel = 5
)

// Input is one questionnaire submission.
type Input struct {
	Age          int      `json:"age"`
	SkinType     SkinType `json:"skinType"`
	SaggingLevel int      `json:"saggingLevel"`
	WrinkleLevel int      `json:"wrinkleLevel"`
	Budget       Budget   `json:"budget"`
	DowntimeOK   bool     `json:"downtimeOk"`
}

// Recommendation is a single suggested procedure.
type Recommendation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Intensity   string `json:"intensity"`
	Reason      string `json:"reason"`
	EnergyBased bool   `json:"energyBased"`
}

// Result is the engine output. Recommendations keep rule evaluation order.
type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	Logic           string           `json:"logic"`
	Rule            RuleID           `json:"rule"`
}

// Empty reports whether no procedure was recommended.
func (r Result) Empty() bool {
	return len(r.Recommendations) == 0
}
