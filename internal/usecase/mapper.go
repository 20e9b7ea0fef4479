package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/prompts"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

// MapToDomain converts a parsed model response into the typed result for
// kind. It never fails: missing arrays become empty, missing objects become
// zero values and missing ids become "<prefix>_<index>".
func MapToDomain(kind prompts.Kind, parsed map[string]any) domain.StructuredResult {
	if parsed == nil {
		parsed = map[string]any{}
	}
	switch kind {
	case prompts.KindCoverLetterStories:
		return MapCoverLetter(parsed)
	case prompts.KindCoverLetterTemplate:
		return MapTemplate(parsed)
	case prompts.KindCaseStudy:
		return MapCaseStudy(parsed)
	case prompts.KindLinkedIn:
		return MapLinkedIn(parsed)
	case prompts.KindJobMatch:
		return MapJobMatch(parsed)
	case prompts.KindContentTagging:
		return MapContentTags(parsed)
	default:
		return MapResume(parsed)
	}
}

// MapResume builds a ResumeResult.
func MapResume(m map[string]any) domain.ResumeResult {
	return domain.ResumeResult{
		ContactInfo:    mapContact(obj(m["contactInfo"])),
		Summary:        str(m["summary"]),
		WorkHistory:    mapWork(m["workHistory"]),
		Education:      mapEducation(m["education"]),
		Skills:         mapSkills(m["skills"]),
		Achievements:   strs(m["achievements"]),
		Certifications: mapCertifications(m["certifications"]),
		Projects:       mapProjects(m["projects"]),
	}
}

// MapLinkedIn builds a LinkedInResult.
func MapLinkedIn(m map[string]any) domain.LinkedInResult {
	return domain.LinkedInResult{
		Headline:       str(m["headline"]),
		Summary:        str(m["summary"]),
		ContactInfo:    mapContact(obj(m["contactInfo"])),
		WorkHistory:    mapWork(m["workHistory"]),
		Education:      mapEducation(m["education"]),
		Skills:         mapSkills(m["skills"]),
		Certifications: mapCertifications(m["certifications"]),
	}
}

// MapCoverLetter builds a CoverLetterResult.
func MapCoverLetter(m map[string]any) domain.CoverLetterResult {
	items := arr(m["paragraphs"])
	paragraphs := make([]domain.Paragraph, 0, len(items))
	for i, v := range items {
		p := obj(v)
		idx := i
		if n, ok := num(p["index"]); ok {
			idx = int(n)
		}
		paragraphs = append(paragraphs, domain.Paragraph{
			ID:       idOr(p, "para", i),
			Index:    idx,
			Text:     str(p["text"]),
			Function: str(p["function"]),
			Purpose:  str(p["purpose"]),
			Tags:     strs(p["tags"]),
		})
	}
	sig := obj(m["templateSignals"])
	return domain.CoverLetterResult{
		Paragraphs: paragraphs,
		Stories:    mapStories(m["stories"], "story"),
		TemplateSignals: domain.TemplateSignals{
			Tone:                  str(sig["tone"]),
			Greeting:              str(sig["greeting"]),
			SignOff:               str(sig["signOff"]),
			ReusablePhrases:       strs(sig["reusablePhrases"]),
			PersonalizationPoints: strs(sig["personalizationPoints"]),
		},
	}
}

// MapTemplate builds a TemplateResult. A missing total is the sum of the
// section placeholder counts.
func MapTemplate(m map[string]any) domain.TemplateResult {
	items := arr(m["bodyParagraphs"])
	body := make([]domain.TemplateSection, 0, len(items))
	for i, v := range items {
		body = append(body, mapSection(obj(v), fmt.Sprintf("body_%d", i)))
	}
	out := domain.TemplateResult{
		Intro:          mapSection(obj(m["intro"]), "intro"),
		BodyParagraphs: body,
		Closer:         mapSection(obj(m["closer"]), "closer"),
	}
	if n, ok := num(m["totalPlaceholders"]); ok && n > 0 {
		out.TotalPlaceholders = int(n)
	} else {
		out.TotalPlaceholders = out.Intro.PlaceholderCount + out.Closer.PlaceholderCount
		for _, s := range body {
			out.TotalPlaceholders += s.PlaceholderCount
		}
	}
	return out
}

// MapCaseStudy builds a CaseStudyResult.
func MapCaseStudy(m map[string]any) domain.CaseStudyResult {
	return domain.CaseStudyResult{
		Title:    str(m["title"]),
		Client:   str(m["client"]),
		Role:     str(m["role"]),
		Problem:  str(m["problem"]),
		Approach: str(m["approach"]),
		Outcome:  str(m["outcome"]),
		Metrics:  mapMetrics(m["metrics"]),
		Skills:   skillNames(m["skills"]),
		Stories:  mapStories(m["stories"], "story"),
	}
}

// MapJobMatch builds a JobMatchResult with the score clamped to 0–100.
func MapJobMatch(m map[string]any) domain.JobMatchResult {
	score, _ := num(m["matchScore"])
	matchItems := arr(m["skillMatches"])
	matches := make([]domain.SkillMatch, 0, len(matchItems))
	for i, v := range matchItems {
		o := obj(v)
		matches = append(matches, domain.SkillMatch{
			ID:          idOr(o, "match", i),
			Requirement: str(o["requirement"]),
			Evidence:    str(o["evidence"]),
			Strength:    str(o["strength"]),
		})
	}
	gapItems := arr(m["gapAreas"])
	gaps := make([]domain.GapArea, 0, len(gapItems))
	for i, v := range gapItems {
		o := obj(v)
		gaps = append(gaps, domain.GapArea{
			ID:         idOr(o, "gap", i),
			Area:       str(o["area"]),
			Severity:   str(o["severity"]),
			Suggestion: str(o["suggestion"]),
		})
	}
	return domain.JobMatchResult{
		MatchScore:   clampFloat(score, 0, 100),
		Summary:      str(m["summary"]),
		SkillMatches: matches,
		GapAreas:     gaps,
	}
}

// MapContentTags builds a ContentTagsResult, dropping unlabeled tags and
// clamping confidence to 0–1.
func MapContentTags(m map[string]any) domain.ContentTagsResult {
	items := arr(m["tags"])
	tags := make([]domain.ContentTag, 0, len(items))
	for _, v := range items {
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, domain.ContentTag{Label: s, Confidence: 1})
			}
			continue
		}
		o := obj(v)
		label := str(o["label"])
		if label == "" {
			continue
		}
		conf, ok := num(o["confidence"])
		if !ok {
			conf = 1
		}
		tags = append(tags, domain.ContentTag{
			Label:      label,
			Category:   str(o["category"]),
			Confidence: clampFloat(conf, 0, 1),
		})
	}
	return domain.ContentTagsResult{Tags: tags}
}

func mapContact(m map[string]any) domain.ContactInfo {
	return domain.ContactInfo{
		Name:     strPtr(m["name"]),
		Email:    strPtr(m["email"]),
		Phone:    strPtr(m["phone"]),
		Location: strPtr(m["location"]),
		LinkedIn: strPtr(m["linkedin"]),
		Website:  strPtr(m["website"]),
		GitHub:   strPtr(m["github"]),
	}
}

func mapWork(v any) []domain.WorkExperience {
	items := arr(v)
	out := make([]domain.WorkExperience, 0, len(items))
	for i, item := range items {
		m := obj(item)
		id := idOr(m, "work", i)
		end, current := endDate(m["endDate"])
		if b, ok := m["current"].(bool); ok && b {
			current = true
			end = nil
		}
		out = append(out, domain.WorkExperience{
			ID:           id,
			Company:      str(m["company"]),
			Title:        str(m["title"]),
			Location:     str(m["location"]),
			StartDate:    strPtr(m["startDate"]),
			EndDate:      end,
			Current:      current,
			Description:  str(m["description"]),
			Achievements: strs(m["achievements"]),
			Technologies: strs(m["technologies"]),
			Stories:      mapStories(m["stories"], id+"_story"),
			RoleMetrics:  mapMetrics(m["roleMetrics"]),
		})
	}
	return out
}

func mapEducation(v any) []domain.Education {
	items := arr(v)
	out := make([]domain.Education, 0, len(items))
	for i, item := range items {
		m := obj(item)
		out = append(out, domain.Education{
			ID:           idOr(m, "edu", i),
			Institution:  str(m["institution"]),
			Degree:       str(m["degree"]),
			FieldOfStudy: str(m["fieldOfStudy"]),
			StartDate:    strPtr(m["startDate"]),
			EndDate:      strPtr(m["endDate"]),
			GPA:          str(m["gpa"]),
		})
	}
	return out
}

// mapSkills accepts plain strings or {name, category} objects.
func mapSkills(v any) []domain.Skill {
	items := arr(v)
	out := make([]domain.Skill, 0, len(items))
	for _, item := range items {
		var s domain.Skill
		switch t := item.(type) {
		case string:
			s.Name = strings.TrimSpace(t)
		case map[string]any:
			s.Name = str(t["name"])
			s.Category = str(t["category"])
		}
		if s.Name != "" {
			out = append(out, s)
		}
	}
	return out
}

func skillNames(v any) []string {
	skills := mapSkills(v)
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		out = append(out, s.Name)
	}
	return out
}

func mapCertifications(v any) []domain.Certification {
	items := arr(v)
	out := make([]domain.Certification, 0, len(items))
	for i, item := range items {
		m := obj(item)
		out = append(out, domain.Certification{
			ID:     idOr(m, "cert", i),
			Name:   str(m["name"]),
			Issuer: str(m["issuer"]),
			Date:   strPtr(m["date"]),
		})
	}
	return out
}

func mapProjects(v any) []domain.Project {
	items := arr(v)
	out := make([]domain.Project, 0, len(items))
	for i, item := range items {
		m := obj(item)
		out = append(out, domain.Project{
			ID:           idOr(m, "project", i),
			Name:         str(m["name"]),
			Description:  str(m["description"]),
			Technologies: strs(m["technologies"]),
			URL:          strPtr(m["url"]),
			Metrics:      mapMetrics(m["metrics"]),
		})
	}
	return out
}

func mapStories(v any, prefix string) []domain.Story {
	items := arr(v)
	out := make([]domain.Story, 0, len(items))
	for i, item := range items {
		m := obj(item)
		out = append(out, domain.Story{
			ID:        idOr(m, prefix, i),
			Title:     str(m["title"]),
			Situation: str(m["situation"]),
			Task:      str(m["task"]),
			Action:    str(m["action"]),
			Result:    str(m["result"]),
			Content:   str(m["content"]),
			Metrics:   mapMetrics(m["metrics"]),
			Tags:      strs(m["tags"]),
		})
	}
	return out
}

// mapMetrics accepts {value, context, type} objects or bare values.
func mapMetrics(v any) []domain.Metric {
	items := arr(v)
	out := make([]domain.Metric, 0, len(items))
	for _, item := range items {
		var mt domain.Metric
		if m, ok := item.(map[string]any); ok {
			mt = domain.Metric{Value: str(m["value"]), Context: str(m["context"]), Type: str(m["type"])}
		} else {
			mt.Value = str(item)
		}
		if mt.Value != "" || mt.Context != "" {
			out = append(out, mt)
		}
	}
	return out
}

func mapSection(m map[string]any, id string) domain.TemplateSection {
	s := domain.TemplateSection{
		ID:      idOrValue(m, id),
		Text:    str(m["text"]),
		Purpose: str(m["purpose"]),
	}
	if n, ok := num(m["placeholderCount"]); ok && n > 0 {
		s.PlaceholderCount = int(n)
	}
	return s
}

// endDate treats "Present"-style values as an ongoing role.
func endDate(v any) (*string, bool) {
	p := strPtr(v)
	if p == nil {
		return nil, false
	}
	switch strings.ToLower(*p) {
	case "present", "current", "now", "ongoing", "today":
		return nil, true
	}
	return p, false
}

func idOr(m map[string]any, prefix string, index int) string {
	return idOrValue(m, fmt.Sprintf("%s_%d", prefix, index))
}

func idOrValue(m map[string]any, fallback string) string {
	if id := str(m["id"]); id != "" {
		return id
	}
	return fallback
}

func obj(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func arr(v any) []any {
	if a, ok := v.([]any); ok {
		return a
	}
	return nil
}

// str coerces scalars to a trimmed string; objects, arrays and null become "".
func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// strPtr is str with "" and the literal "null" mapped to nil.
func strPtr(v any) *string {
	s := str(v)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

func strs(v any) []string {
	items := arr(v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := str(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func num(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		return f, err == nil
	}
	return 0, false
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
