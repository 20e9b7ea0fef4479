package domain

// StructuredResult is the typed, defaulted record produced after a model
// response has been parsed and mapped.
type StructuredResult interface {
	ResultKind() string
}

// Metric is a quantified claim attached to a role, story or project.
type Metric struct {
	Value   string `json:"value"`
	Context string `json:"context"`
	Type    string `json:"type"`
}

// Story is a STAR-form narrative.
type Story struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Situation string   `json:"situation"`
	Task      string   `json:"task"`
	Action    string   `json:"action"`
	Result    string   `json:"result"`
	Content   string   `json:"content"`
	Metrics   []Metric `json:"metrics"`
	Tags      []string `json:"tags"`
}

// ContactInfo fields are optional; absent values stay nil.
type ContactInfo struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`
	LinkedIn *string `json:"linkedin,omitempty"`
	Website  *string `json:"website,omitempty"`
	GitHub   *string `json:"github,omitempty"`
}

type WorkExperience struct {
	ID           string   `json:"id"`
	Company      string   `json:"company"`
	Title        string   `json:"title"`
	Location     string   `json:"location"`
	StartDate    *string  `json:"startDate"`
	EndDate      *string  `json:"endDate"`
	Current      bool     `json:"current"`
	Description  string   `json:"description"`
	Achievements []string `json:"achievements"`
	Technologies []string `json:"technologies"`
	Stories      []Story  `json:"stories"`
	RoleMetrics  []Metric `json:"roleMetrics"`
}

type Education struct {
	ID           string  `json:"id"`
	Institution  string  `json:"institution"`
	Degree       string  `json:"degree"`
	FieldOfStudy string  `json:"fieldOfStudy"`
	StartDate    *string `json:"startDate"`
	EndDate      *string `json:"endDate"`
	GPA          string  `json:"gpa"`
}

type Skill struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type Certification struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Issuer string  `json:"issuer"`
	Date   *string `json:"date"`
}

type Project struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	URL          *string  `json:"url"`
	Metrics      []Metric `json:"metrics"`
}

// ResumeResult is the structured form of a resume.
type ResumeResult struct {
	ContactInfo    ContactInfo      `json:"contactInfo"`
	Summary        string           `json:"summary"`
	WorkHistory    []WorkExperience `json:"workHistory"`
	Education      []Education      `json:"education"`
	Skills         []Skill          `json:"skills"`
	Achievements   []string         `json:"achievements"`
	Certifications []Certification  `json:"certifications"`
	Projects       []Project        `json:"projects"`
}

func (ResumeResult) ResultKind() string { return "resume" }

// Paragraph is one cover letter paragraph tagged with its rhetorical role.
type Paragraph struct {
	ID       string   `json:"id"`
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Function string   `json:"function"`
	Purpose  string   `json:"purpose"`
	Tags     []string `json:"tags"`
}

type TemplateSignals struct {
	Tone                  string   `json:"tone"`
	Greeting              string   `json:"greeting"`
	SignOff               string   `json:"signOff"`
	ReusablePhrases       []string `json:"reusablePhrases"`
	PersonalizationPoints []string `json:"personalizationPoints"`
}

// CoverLetterResult is the story-extraction view of a cover letter.
type CoverLetterResult struct {
	Paragraphs      []Paragraph     `json:"paragraphs"`
	Stories         []Story         `json:"stories"`
	TemplateSignals TemplateSignals `json:"templateSignals"`
}

func (CoverLetterResult) ResultKind() string { return "coverLetter" }

type TemplateSection struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	Purpose          string `json:"purpose"`
	PlaceholderCount int    `json:"placeholderCount"`
}

// TemplateResult is the template-extraction view of a cover letter.
type TemplateResult struct {
	Intro             TemplateSection   `json:"intro"`
	BodyParagraphs    []TemplateSection `json:"bodyParagraphs"`
	Closer            TemplateSection   `json:"closer"`
	TotalPlaceholders int               `json:"totalPlaceholders"`
}

func (TemplateResult) ResultKind() string { return "coverLetterTemplate" }

type CaseStudyResult struct {
	Title    string   `json:"title"`
	Client   string   `json:"client"`
	Role     string   `json:"role"`
	Problem  string   `json:"problem"`
	Approach string   `json:"approach"`
	Outcome  string   `json:"outcome"`
	Metrics  []Metric `json:"metrics"`
	Skills   []string `json:"skills"`
	Stories  []Story  `json:"stories"`
}

func (CaseStudyResult) ResultKind() string { return "caseStudy" }

type LinkedInResult struct {
	Headline       string           `json:"headline"`
	Summary        string           `json:"summary"`
	ContactInfo    ContactInfo      `json:"contactInfo"`
	WorkHistory    []WorkExperience `json:"workHistory"`
	Education      []Education      `json:"education"`
	Skills         []Skill          `json:"skills"`
	Certifications []Certification  `json:"certifications"`
}

func (LinkedInResult) ResultKind() string { return "linkedin" }

type SkillMatch struct {
	ID          string `json:"id"`
	Requirement string `json:"requirement"`
	Evidence    string `json:"evidence"`
	Strength    string `json:"strength"`
}

type GapArea struct {
	ID         string `json:"id"`
	Area       string `json:"area"`
	Severity   string `json:"severity"`
	Suggestion string `json:"suggestion"`
}

// JobMatchResult scores a resume against a job description. MatchScore is 0–100.
type JobMatchResult struct {
	MatchScore   float64      `json:"matchScore"`
	Summary      string       `json:"summary"`
	SkillMatches []SkillMatch `json:"skillMatches"`
	GapAreas     []GapArea    `json:"gapAreas"`
}

func (JobMatchResult) ResultKind() string { return "jobMatch" }

type ContentTag struct {
	Label      string  `json:"label"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

type ContentTagsResult struct {
	Tags []ContentTag `json:"tags"`
}

func (ContentTagsResult) ResultKind() string { return "contentTags" }
