package tokencount

import (
	"math"
	"regexp"
	"unicode/utf8"

	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
	"github.com/fairyhunter13/coverletter-assistant/pkg/textx"
)

// Budget bounds and factors.
const (
	MinTokenCeiling      = 800
	MaxTokenCeiling      = 5000
	HealCeilingCap       = 4000
	CharsPerToken        = 3.5
	SafetyBufferFactor   = 1.8
	SafetyPad            = 500
	MaxComplexity        = 2.0
	ResumeOverhead       = 1200
	DefaultOverhead      = 800
	tokenLimitMultiplier = 2.0
	truncationMultiplier = 1.5
)

var (
	workKeywords      = regexp.MustCompile(`(?i)\b(experience|employment|position|role|manager|engineer|developer|director|company|responsible)\b`)
	educationKeywords = regexp.MustCompile(`(?i)\b(education|university|college|degree|bachelor|master|phd|diploma|school|gpa)\b`)
	skillsKeywords    = regexp.MustCompile(`(?i)\b(skills|technologies|proficient|expertise|competencies|tools)\b`)
	projectKeywords   = regexp.MustCompile(`(?i)\b(project|projects|built|launched|implemented|designed)\b`)
)

// TypeMultiplier scales content tokens by how verbose the structured output
// for a document type tends to be.
func TypeMultiplier(t domain.DocumentType) float64 {
	switch t {
	case domain.DocumentCoverLetter:
		return 0.7
	case domain.DocumentCaseStudy:
		return 1.2
	case domain.DocumentLinkedIn:
		return 0.5
	default:
		return 1.0
	}
}

// StructuralOverhead is the fixed token cost of the output schema itself.
func StructuralOverhead(t domain.DocumentType) int {
	if t == domain.DocumentResume {
		return ResumeOverhead
	}
	return DefaultOverhead
}

// ComplexityMultiplier grows from 1.0 with the size and density of the text,
// capped at 2.0.
func ComplexityMultiplier(rawText string) float64 {
	c := 1.0
	words := textx.WordCount(rawText)
	if words > 1000 {
		c += 0.3
	}
	if words > 2000 {
		c += 0.2
	}
	if len(workKeywords.FindAllStringIndex(rawText, -1)) > 3 {
		c += 0.2
	}
	if len(educationKeywords.FindAllStringIndex(rawText, -1)) > 2 {
		c += 0.1
	}
	if len(skillsKeywords.FindAllStringIndex(rawText, -1)) > 1 {
		c += 0.1
	}
	if len(projectKeywords.FindAllStringIndex(rawText, -1)) > 2 {
		c += 0.2
	}
	if textx.AvgWordsPerLine(rawText) > 15 {
		c += 0.1
	}
	// round away float noise from the increments
	c = math.Round(c*100) / 100
	return math.Min(c, MaxComplexity)
}

// EstimateTokenBudget derives the output-token ceiling for one analysis. The
// 1.8x buffer and 500-token pad over-provision on purpose so the common case
// never reaches the truncation heal.
func EstimateTokenBudget(rawText string, docType domain.DocumentType) domain.TokenBudget {
	content := int(math.Ceil(float64(utf8.RuneCountInString(rawText)) / CharsPerToken))
	complexity := ComplexityMultiplier(rawText)
	typeMul := TypeMultiplier(docType)
	overhead := StructuralOverhead(docType)

	raw := (float64(content)*complexity*typeMul+float64(overhead))*SafetyBufferFactor + SafetyPad
	final := clamp(int(math.Ceil(raw)), MinTokenCeiling, MaxTokenCeiling)

	return domain.TokenBudget{
		ContentTokenEstimate: content,
		ComplexityMultiplier: complexity,
		TypeMultiplier:       typeMul,
		StructuralOverhead:   overhead,
		SafetyBufferFactor:   SafetyBufferFactor,
		FinalTokenCeiling:    final,
	}
}

// TokenLimitCeiling is the ceiling used after the provider rejected a request
// for exceeding the context window.
func TokenLimitCeiling(promptTokens int) int {
	n := int(math.Ceil(tokenLimitMultiplier * float64(promptTokens)))
	return clamp(n, 1, HealCeilingCap)
}

// TruncationCeiling is the ceiling used after a completion stopped on
// finish_reason=length. The result is strictly above current whenever current
// is below MaxTokenCeiling; ok is false when there is no room left to grow.
func TruncationCeiling(observedTokens, current int) (next int, ok bool) {
	if observedTokens < current {
		// the model stopped on the ceiling, so it produced at least that much
		observedTokens = current
	}
	next = int(math.Ceil(truncationMultiplier * float64(observedTokens)))
	if next > HealCeilingCap {
		next = HealCeilingCap
	}
	if next <= current {
		next = int(math.Ceil(truncationMultiplier * float64(current)))
	}
	if next > MaxTokenCeiling {
		next = MaxTokenCeiling
	}
	return next, next > current
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
