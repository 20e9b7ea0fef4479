package domain

// Rubric labels. Each verdict field takes exactly one of three literals.
const (
	AccuracyAccurate   = "Accurate"
	AccuracyPartial    = "Partially Accurate"
	AccuracyInaccurate = "Inaccurate"

	RelevanceRelevant    = "Relevant"
	RelevanceSomewhat    = "Somewhat Relevant"
	RelevanceNotRelevant = "Not Relevant"

	PersonalizationPersonalized = "Personalized"
	PersonalizationSomewhat     = "Somewhat Personalized"
	PersonalizationGeneric      = "Generic"

	ClarityClear           = "Clear"
	ClaritySomewhat        = "Somewhat Clear"
	ClarityUnclearOrFluffy = "Unclear/Fluffy"

	FrameworkStructured    = "Structured"
	FrameworkPartial       = "Partially Structured"
	FrameworkNotStructured = "Not Structured"

	GoNoGoGo          = "Go"
	GoNoGoNeedsReview = "Needs Review"
	GoNoGoNoGo        = "No-Go"
)

// RubricLabels enumerates the accepted literals per verdict field, keyed by JSON name.
var RubricLabels = map[string][]string{
	"accuracy":        {AccuracyAccurate, AccuracyPartial, AccuracyInaccurate},
	"relevance":       {RelevanceRelevant, RelevanceSomewhat, RelevanceNotRelevant},
	"personalization": {PersonalizationPersonalized, PersonalizationSomewhat, PersonalizationGeneric},
	"clarity_tone":    {ClarityClear, ClaritySomewhat, ClarityUnclearOrFluffy},
	"framework":       {FrameworkStructured, FrameworkPartial, FrameworkNotStructured},
	"go_nogo":         {GoNoGoGo, GoNoGoNeedsReview, GoNoGoNoGo},
}

// RubricFields lists the six required verdict fields in prompt order.
var RubricFields = []string{"accuracy", "relevance", "personalization", "clarity_tone", "framework", "go_nogo"}

// EvaluationVerdict is the six-axis quality gate for a structured result.
type EvaluationVerdict struct {
	Accuracy        string `json:"accuracy"`
	Relevance       string `json:"relevance"`
	Personalization string `json:"personalization"`
	ClarityTone     string `json:"clarity_tone"`
	Framework       string `json:"framework"`
	GoNoGo          string `json:"go_nogo"`
	Rationale       string `json:"rationale"`
}

// Passed reports whether the gate let the content through.
func (v EvaluationVerdict) Passed() bool { return v.GoNoGo == GoNoGoGo }

// FailClosedVerdict is the verdict returned whenever the judge could not
// actually judge. Every axis takes its most negative label.
func FailClosedVerdict(reason string) EvaluationVerdict {
	return EvaluationVerdict{
		Accuracy:        AccuracyInaccurate,
		Relevance:       RelevanceNotRelevant,
		Personalization: PersonalizationGeneric,
		ClarityTone:     ClarityUnclearOrFluffy,
		Framework:       FrameworkNotStructured,
		GoNoGo:          GoNoGoNoGo,
		Rationale:       reason,
	}
}

// HeuristicReport holds the deterministic, model-free signals computed for a
// structured result.
type HeuristicReport struct {
	HasWorkExperience   bool `json:"has_work_experience"`
	HasMetrics          bool `json:"has_metrics"`
	HasCompanyNames     bool `json:"has_company_names"`
	HasJobTitles        bool `json:"has_job_titles"`
	HasEducation        bool `json:"has_education"`
	HasSkills           bool `json:"has_skills"`
	HasContactInfo      bool `json:"has_contact_info"`
	WorkExperienceCount int  `json:"work_experience_count"`
	MetricCount         int  `json:"metric_count"`
	SkillCount          int  `json:"skill_count"`
	// Completeness is the share of the seven boolean checks that pass, 0–100.
	Completeness int `json:"completeness"`
}
