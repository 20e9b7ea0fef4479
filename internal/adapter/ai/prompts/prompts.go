// Package prompts renders the instructions sent to the completion API. Every
// prompt embeds the raw input, the exact JSON shape the model must emit and
// the extraction rules for that shape. Rendering is pure and never fails.
package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
	"github.com/fairyhunter13/coverletter-assistant/pkg/textx"
)

// Kind selects a prompt shape.
type Kind string

const (
	KindResume              Kind = "resume"
	KindCoverLetterTemplate Kind = "coverLetterTemplate"
	KindCoverLetterStories  Kind = "coverLetterStories"
	KindCaseStudy           Kind = "caseStudy"
	KindLinkedIn            Kind = "linkedin"
	KindJobMatch            Kind = "jobMatch"
	KindContentTagging      Kind = "contentTagging"
	KindEvaluation          Kind = "evaluation"
	KindSimplified          Kind = "simplified"
)

// Keys read from the extra context by specific kinds.
const (
	ExtraJobDescription = "jobDescription"
	ExtraResult         = "result"
	ExtraDocumentType   = "documentType"
)

// EvaluationExcerptRunes is how much of the original text the judge sees.
const EvaluationExcerptRunes = 500

const systemPrompt = `You are a precise document analyst. You respond with a single JSON object and nothing else: no Markdown fences, no commentary, no trailing commas. Use exactly the field names you are given.`

// System returns the system message shared by every prompt.
func System() string { return systemPrompt }

// ForDocument maps a document type to its default extraction prompt.
func ForDocument(t domain.DocumentType) Kind {
	switch t {
	case domain.DocumentCoverLetter:
		return KindCoverLetterStories
	case domain.DocumentCaseStudy:
		return KindCaseStudy
	case domain.DocumentLinkedIn:
		return KindLinkedIn
	default:
		return KindResume
	}
}

// Build renders the prompt for kind. Empty rawText is valid and yields a
// prompt whose answer is a shell of empty arrays. Unknown kinds render the
// resume prompt.
func Build(kind Kind, rawText string, extra map[string]any) string {
	switch kind {
	case KindCoverLetterTemplate:
		return extraction("Turn this cover letter into a reusable template", "COVER LETTER", rawText, templateSchema, templateRules, extra)
	case KindCoverLetterStories:
		return extraction("Break this cover letter into tagged paragraphs and STAR stories", "COVER LETTER", rawText, coverLetterSchema, coverLetterRules, extra)
	case KindCaseStudy:
		return extraction("Extract the structure of this case study", "CASE STUDY", rawText, caseStudySchema, caseStudyRules, extra)
	case KindLinkedIn:
		return extraction("Extract this LinkedIn profile", "LINKEDIN PROFILE", rawText, linkedInSchema, resumeRules, extra)
	case KindJobMatch:
		return jobMatch(rawText, extra)
	case KindContentTagging:
		return extraction("Tag the topics, skills and achievements in this text", "TEXT", rawText, contentTagsSchema, contentTagsRules, extra)
	case KindEvaluation:
		return evaluation(rawText, extra)
	case KindSimplified:
		return Simplified(documentTypeFrom(extra), rawText)
	default:
		return extraction("Extract this resume", "RESUME", rawText, resumeSchema, resumeRules, extra)
	}
}

// Simplified renders the last-resort prompt: a flat empty-shell schema and no rules.
func Simplified(t domain.DocumentType, rawText string) string {
	var shell string
	switch t {
	case domain.DocumentCoverLetter:
		shell = `{"paragraphs": [], "stories": [], "templateSignals": {}}`
	case domain.DocumentCaseStudy:
		shell = `{"title": "", "problem": "", "approach": "", "outcome": "", "metrics": [], "skills": []}`
	case domain.DocumentLinkedIn:
		shell = `{"headline": "", "summary": "", "workHistory": [], "education": [], "skills": []}`
	default:
		shell = `{"contactInfo": {}, "summary": "", "workHistory": [], "education": [], "skills": [], "achievements": [], "certifications": [], "projects": []}`
	}
	return fmt.Sprintf(`Extract what you can from the text below into this JSON shape. Leave anything you are unsure about empty.

%s

TEXT:
%s`, shell, rawText)
}

// Evaluation renders the judge prompt for a structured result.
func Evaluation(result any, originalText string, t domain.DocumentType) string {
	return Build(KindEvaluation, originalText, map[string]any{
		ExtraResult:       result,
		ExtraDocumentType: string(t),
	})
}

func extraction(task, label, rawText, schema, rules string, extra map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s. Return JSON with exactly this structure:\n\n%s\n\nRules:\n%s\n", task, schema, rules)
	if ctx := renderContext(extra, nil); ctx != "" {
		fmt.Fprintf(&b, "\nAdditional context:\n%s", ctx)
	}
	fmt.Fprintf(&b, "\n%s:\n%s", label, rawText)
	return b.String()
}

func jobMatch(resumeText string, extra map[string]any) string {
	jd := ""
	if v, ok := extra[ExtraJobDescription].(string); ok {
		jd = v
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Compare the candidate with the job description. Return JSON with exactly this structure:\n\n%s\n\nRules:\n%s\n", jobMatchSchema, jobMatchRules)
	if ctx := renderContext(extra, []string{ExtraJobDescription}); ctx != "" {
		fmt.Fprintf(&b, "\nAdditional context:\n%s", ctx)
	}
	fmt.Fprintf(&b, "\nJOB DESCRIPTION:\n%s\n\nCANDIDATE:\n%s", jd, resumeText)
	return b.String()
}

func evaluation(originalText string, extra map[string]any) string {
	var b strings.Builder
	b.WriteString("You are a strict reviewer. Judge whether the extracted JSON faithfully and usefully represents the original document.\n\n")
	fmt.Fprintf(&b, "Document type: %s\n\n", documentTypeFrom(extra))
	fmt.Fprintf(&b, "ORIGINAL (first %d characters):\n%s\n\n", EvaluationExcerptRunes, textx.Truncate(originalText, EvaluationExcerptRunes))
	fmt.Fprintf(&b, "EXTRACTED JSON:\n%s\n\n", toJSON(extra[ExtraResult]))
	b.WriteString("Score each field with exactly one of the allowed labels:\n")
	for _, field := range domain.RubricFields {
		fmt.Fprintf(&b, "- %s: %s\n", field, quoteAll(domain.RubricLabels[field]))
	}
	b.WriteString("- rationale: one or two sentences explaining the scores\n\n")
	fmt.Fprintf(&b, "Return JSON with exactly this structure:\n\n%s", evaluationSchema)
	return b.String()
}

// renderContext lists the extra context as sorted "key: value" lines.
func renderContext(extra map[string]any, skip []string) string {
	if len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if contains(skip, k) || k == ExtraDocumentType {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		switch v := extra[k].(type) {
		case string:
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		default:
			fmt.Fprintf(&b, "- %s: %s\n", k, toJSON(v))
		}
	}
	return b.String()
}

func documentTypeFrom(extra map[string]any) domain.DocumentType {
	switch v := extra[ExtraDocumentType].(type) {
	case domain.DocumentType:
		return v
	case string:
		if t, err := domain.ParseDocumentType(v); err == nil {
			return t
		}
	}
	return domain.DocumentResume
}

func toJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func quoteAll(labels []string) string {
	q := make([]string, len(labels))
	for i, l := range labels {
		q[i] = `"` + l + `"`
	}
	return strings.Join(q, " | ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
