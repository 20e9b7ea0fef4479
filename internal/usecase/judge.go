package usecase

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/prompts"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

// JudgeTokenCeiling is the ceiling for verdict completions; a verdict is six
// labels and a short rationale.
const JudgeTokenCeiling = 800

const verdictSchema = `{
  "type": "object",
  "required": ["accuracy", "relevance", "personalization", "clarity_tone", "framework", "go_nogo"],
  "properties": {
    "accuracy":        {"type": "string", "enum": ["Accurate", "Partially Accurate", "Inaccurate"]},
    "relevance":       {"type": "string", "enum": ["Relevant", "Somewhat Relevant", "Not Relevant"]},
    "personalization": {"type": "string", "enum": ["Personalized", "Somewhat Personalized", "Generic"]},
    "clarity_tone":    {"type": "string", "enum": ["Clear", "Somewhat Clear", "Unclear/Fluffy"]},
    "framework":       {"type": "string", "enum": ["Structured", "Partially Structured", "Not Structured"]},
    "go_nogo":         {"type": "string", "enum": ["Go", "Needs Review", "No-Go"]},
    "rationale":       {"type": "string"}
  }
}`

var verdictSchemaLoader = gojsonschema.NewStringLoader(verdictSchema)

// Judge scores structured results against the six-axis rubric. Any failure
// to obtain a complete verdict yields the fail-closed verdict.
type Judge struct {
	orch   *Orchestrator
	schema *gojsonschema.Schema
}

// NewJudge compiles the verdict schema.
func NewJudge(orch *Orchestrator) (*Judge, error) {
	s, err := gojsonschema.NewSchema(verdictSchemaLoader)
	if err != nil {
		return nil, fmt.Errorf("op=judge.New: %w", err)
	}
	return &Judge{orch: orch, schema: s}, nil
}

// Score asks the model for a verdict on result. It never returns an error:
// call failures, unparseable output and incomplete verdicts all fail closed.
func (j *Judge) Score(ctx domain.Context, result any, originalText string, dt domain.DocumentType) domain.EvaluationVerdict {
	lg := observability.LoggerFromContext(ctx).With(slog.String("document_type", string(dt)))

	parsed, _, err := j.orch.Extract(ctx, ExtractRequest{
		System:  prompts.System(),
		Prompt:  prompts.Evaluation(result, originalText, dt),
		Ceiling: JudgeTokenCeiling,
	})
	if err != nil {
		lg.Warn("evaluation failed, failing closed", slog.Any("error", err))
		return j.failClosed("evaluation call failed: " + err.Error())
	}

	v, err := j.verdict(parsed)
	if err != nil {
		lg.Warn("evaluation incomplete, failing closed", slog.Any("error", err))
		return j.failClosed(err.Error())
	}
	observability.ObserveVerdict(v.GoNoGo, false)
	lg.Info("evaluation completed", slog.String("go_nogo", v.GoNoGo))
	return v
}

// verdict normalizes label casing and validates the six required fields.
func (j *Judge) verdict(parsed map[string]any) (domain.EvaluationVerdict, error) {
	for _, field := range domain.RubricFields {
		if s, ok := parsed[field].(string); ok {
			parsed[field] = canonicalLabel(field, s)
		}
	}
	res, err := j.schema.Validate(gojsonschema.NewGoLoader(parsed))
	if err != nil {
		return domain.EvaluationVerdict{}, fmt.Errorf("op=judge.verdict: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return domain.EvaluationVerdict{}, fmt.Errorf("incomplete verdict: %s", strings.Join(msgs, "; "))
	}
	return domain.EvaluationVerdict{
		Accuracy:        parsed["accuracy"].(string),
		Relevance:       parsed["relevance"].(string),
		Personalization: parsed["personalization"].(string),
		ClarityTone:     parsed["clarity_tone"].(string),
		Framework:       parsed["framework"].(string),
		GoNoGo:          parsed["go_nogo"].(string),
		Rationale:       str(parsed["rationale"]),
	}, nil
}

func (j *Judge) failClosed(reason string) domain.EvaluationVerdict {
	observability.ObserveVerdict(domain.GoNoGoNoGo, true)
	return domain.FailClosedVerdict(reason)
}

func canonicalLabel(field, s string) string {
	s = strings.TrimSpace(s)
	for _, label := range domain.RubricLabels[field] {
		if strings.EqualFold(label, s) {
			return label
		}
	}
	return s
}

var (
	metricPattern   = regexp.MustCompile(`(?i)([$€£]\s?\d[\d,.]*[kmb]?)|(\d+(\.\d+)?\s?(%|percent|x\b|k\b|m\b|million|billion|users|customers|clients|hours|days|weeks|months|people|engineers|requests))`)
	companyPattern  = regexp.MustCompile(`^[A-Z0-9][\p{L}0-9&.,'’\- ]*$`)
	jobTitlePattern = regexp.MustCompile(`(?i)\b(engineer|developer|manager|director|lead|analyst|designer|consultant|architect|scientist|specialist|coordinator|officer|head|vp|president|intern|administrator|associate|founder|programmer)\b`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// heuristicChecks is the number of boolean checks behind Completeness.
const heuristicChecks = 7

// heuristicView flattens every result kind into the fields the checks read.
type heuristicView struct {
	work    []domain.WorkExperience
	edu     []domain.Education
	skills  []string
	contact domain.ContactInfo
	company []string
	titles  []string
	metrics []domain.Metric
	texts   []string
}

// RunHeuristics computes deterministic, model-free quality signals for result.
func RunHeuristics(result domain.StructuredResult) domain.HeuristicReport {
	v := viewOf(result)

	metricCount := len(v.metrics)
	for _, t := range v.texts {
		metricCount += len(metricPattern.FindAllString(t, -1))
	}

	r := domain.HeuristicReport{
		HasWorkExperience:   len(v.work) > 0,
		HasMetrics:          metricCount > 0,
		HasCompanyNames:     anyMatch(companyPattern, v.company),
		HasJobTitles:        anyMatch(jobTitlePattern, v.titles),
		HasEducation:        len(v.edu) > 0,
		HasSkills:           len(v.skills) > 0,
		HasContactInfo:      v.contact.Email != nil && emailPattern.MatchString(*v.contact.Email),
		WorkExperienceCount: len(v.work),
		MetricCount:         metricCount,
		SkillCount:          len(v.skills),
	}
	passed := 0
	for _, ok := range []bool{r.HasWorkExperience, r.HasMetrics, r.HasCompanyNames, r.HasJobTitles, r.HasEducation, r.HasSkills, r.HasContactInfo} {
		if ok {
			passed++
		}
	}
	r.Completeness = passed * 100 / heuristicChecks
	observability.ObserveHeuristics(r.Completeness)
	return r
}

func viewOf(result domain.StructuredResult) heuristicView {
	var v heuristicView
	switch r := result.(type) {
	case domain.ResumeResult:
		v.work, v.edu, v.contact = r.WorkHistory, r.Education, r.ContactInfo
		v.skills = names(r.Skills)
		v.texts = append(v.texts, r.Summary)
		v.texts = append(v.texts, r.Achievements...)
		for _, p := range r.Projects {
			v.metrics = append(v.metrics, p.Metrics...)
			v.texts = append(v.texts, p.Description)
		}
	case domain.LinkedInResult:
		v.work, v.edu, v.contact = r.WorkHistory, r.Education, r.ContactInfo
		v.skills = names(r.Skills)
		v.texts = append(v.texts, r.Headline, r.Summary)
	case domain.CaseStudyResult:
		v.skills = r.Skills
		v.metrics = r.Metrics
		v.company = []string{r.Client}
		v.titles = []string{r.Role}
		v.texts = append(v.texts, r.Problem, r.Approach, r.Outcome)
		v.texts = append(v.texts, storyTexts(r.Stories)...)
	case domain.CoverLetterResult:
		for _, p := range r.Paragraphs {
			v.texts = append(v.texts, p.Text)
		}
		v.texts = append(v.texts, storyTexts(r.Stories)...)
		for _, s := range r.Stories {
			v.metrics = append(v.metrics, s.Metrics...)
		}
	case domain.TemplateResult:
		v.texts = append(v.texts, r.Intro.Text, r.Closer.Text)
		for _, s := range r.BodyParagraphs {
			v.texts = append(v.texts, s.Text)
		}
	case domain.JobMatchResult:
		v.texts = append(v.texts, r.Summary)
		for _, m := range r.SkillMatches {
			v.texts = append(v.texts, m.Evidence)
		}
	}
	for _, w := range v.work {
		v.company = append(v.company, w.Company)
		v.titles = append(v.titles, w.Title)
		v.metrics = append(v.metrics, w.RoleMetrics...)
		v.texts = append(v.texts, w.Description)
		v.texts = append(v.texts, w.Achievements...)
		v.texts = append(v.texts, storyTexts(w.Stories)...)
	}
	return v
}

func storyTexts(stories []domain.Story) []string {
	out := make([]string, 0, len(stories))
	for _, s := range stories {
		out = append(out, s.Result)
	}
	return out
}

func names(skills []domain.Skill) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		out = append(out, s.Name)
	}
	return out
}

func anyMatch(re *regexp.Regexp, values []string) bool {
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" && re.MatchString(s) {
			return true
		}
	}
	return false
}
