package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

var allKinds = []Kind{
	KindResume, KindCoverLetterTemplate, KindCoverLetterStories, KindCaseStudy, KindLinkedIn,
	KindJobMatch, KindContentTagging, KindEvaluation, KindSimplified,
}

func TestBuild_EmptyTextIsValidForEveryKind(t *testing.T) {
	t.Parallel()

	for _, k := range allKinds {
		k := k
		t.Run(string(k), func(t *testing.T) {
			t.Parallel()

			assert.NotPanics(t, func() {
				p := Build(k, "", nil)
				assert.NotEmpty(t, p)
				assert.Contains(t, p, "{")
			})
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	extra := map[string]any{"company": "Acme", "role": "Staff Engineer", "years": 8}
	for _, k := range allKinds {
		assert.Equal(t, Build(k, "some text", extra), Build(k, "some text", extra), string(k))
	}
}

func TestBuild_EmbedsSchemaAndText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind   Kind
		fields []string
	}{
		{KindResume, []string{`"workHistory"`, `"roleMetrics"`, `"stories"`, `"certifications"`, `"projects"`, `"contactInfo"`}},
		{KindCoverLetterStories, []string{`"paragraphs"`, `"function"`, `"purpose"`, `"templateSignals"`, `"situation"`}},
		{KindCoverLetterTemplate, []string{`"intro"`, `"bodyParagraphs"`, `"closer"`, `"placeholderCount"`}},
		{KindCaseStudy, []string{`"problem"`, `"approach"`, `"outcome"`}},
		{KindLinkedIn, []string{`"headline"`, `"workHistory"`}},
		{KindJobMatch, []string{`"matchScore"`, `"skillMatches"`, `"gapAreas"`}},
		{KindContentTagging, []string{`"tags"`, `"confidence"`}},
	}
	for _, tt := range tests {
		p := Build(tt.kind, "Jane Doe, Senior Engineer", nil)
		for _, f := range tt.fields {
			assert.Contains(t, p, f, "%s prompt should embed %s", tt.kind, f)
		}
		assert.Contains(t, p, "Jane Doe, Senior Engineer")
	}
}

func TestBuild_ResumeRulesCoverCurrentJob(t *testing.T) {
	t.Parallel()

	p := Build(KindResume, "", nil)
	assert.Contains(t, p, `set "endDate" to null and "current" to true`)
}

func TestBuild_ExtraContextSortedAndRendered(t *testing.T) {
	t.Parallel()

	p := Build(KindCoverLetterTemplate, "Dear team", map[string]any{"role": "SRE", "company": "Acme", "tags": []string{"go"}})
	require.Contains(t, p, "Additional context:")
	ci := strings.Index(p, "- company: Acme")
	ri := strings.Index(p, "- role: SRE")
	ti := strings.Index(p, `- tags: [`)
	assert.True(t, ci >= 0 && ri > ci && ti > ri, p)
}

func TestBuild_JobMatch(t *testing.T) {
	t.Parallel()

	p := Build(KindJobMatch, "Go developer, 5 years", map[string]any{ExtraJobDescription: "We need Kubernetes"})
	assert.Contains(t, p, "JOB DESCRIPTION:\nWe need Kubernetes")
	assert.Contains(t, p, "CANDIDATE:\nGo developer, 5 years")
	assert.NotContains(t, p, "Additional context:")
}

func TestEvaluation(t *testing.T) {
	t.Parallel()

	original := strings.Repeat("a", 600) + "TAIL"
	result := domain.ResumeResult{Summary: "Backend engineer"}
	p := Evaluation(result, original, domain.DocumentResume)

	assert.Contains(t, p, strings.Repeat("a", 500))
	assert.NotContains(t, p, strings.Repeat("a", 501))
	assert.NotContains(t, p, "TAIL")
	assert.Contains(t, p, `"summary": "Backend engineer"`)
	assert.Contains(t, p, "Document type: resume")
	for _, f := range domain.RubricFields {
		assert.Contains(t, p, "- "+f+": ")
		for _, label := range domain.RubricLabels[f] {
			assert.Contains(t, p, `"`+label+`"`)
		}
	}
}

func TestEvaluation_UnmarshalableResultDoesNotPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		p := Evaluation(map[string]any{"ch": make(chan int)}, "text", domain.DocumentCaseStudy)
		assert.Contains(t, p, "Document type: caseStudy")
	})
}

func TestForDocument(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindResume, ForDocument(domain.DocumentResume))
	assert.Equal(t, KindCoverLetterStories, ForDocument(domain.DocumentCoverLetter))
	assert.Equal(t, KindCaseStudy, ForDocument(domain.DocumentCaseStudy))
	assert.Equal(t, KindLinkedIn, ForDocument(domain.DocumentLinkedIn))
}

func TestSimplified(t *testing.T) {
	t.Parallel()

	for _, dt := range domain.DocumentTypes {
		p := Simplified(dt, "raw body")
		assert.Contains(t, p, "raw body")
		assert.NotContains(t, p, "Rules:")
		assert.Less(t, len(p), len(Build(ForDocument(dt), "raw body", nil)))
	}
	assert.Contains(t, Build(KindSimplified, "x", map[string]any{ExtraDocumentType: "cover_letter"}), `"paragraphs": []`)
}

func TestSystem(t *testing.T) {
	t.Parallel()

	assert.Contains(t, System(), "JSON")
}
