package prompts

// JSON contracts embedded in the prompts. The mapper in the usecase package
// reads exactly these field names.

const resumeSchema = `{
  "contactInfo": {"name": "", "email": "", "phone": "", "location": "", "linkedin": "", "website": "", "github": ""},
  "summary": "",
  "workHistory": [
    {
      "id": "",
      "company": "",
      "title": "",
      "location": "",
      "startDate": "YYYY-MM or null",
      "endDate": "YYYY-MM or null",
      "current": false,
      "description": "",
      "achievements": [""],
      "technologies": [""],
      "roleMetrics": [{"value": "", "context": "", "type": "percentage|currency|count|time|other"}],
      "stories": [
        {
          "id": "",
          "title": "",
          "situation": "",
          "task": "",
          "action": "",
          "result": "",
          "content": "",
          "metrics": [{"value": "", "context": "", "type": ""}],
          "tags": [""]
        }
      ]
    }
  ],
  "education": [
    {"id": "", "institution": "", "degree": "", "fieldOfStudy": "", "startDate": "", "endDate": "", "gpa": ""}
  ],
  "skills": [{"name": "", "category": "technical|soft|language|tool|domain"}],
  "achievements": [""],
  "certifications": [{"id": "", "name": "", "issuer": "", "date": ""}],
  "projects": [
    {"id": "", "name": "", "description": "", "technologies": [""], "url": "", "metrics": [{"value": "", "context": "", "type": ""}]}
  ]
}`

const resumeRules = `- If a role is the current job ("Present", "Current", "Now" or no end date), set "endDate" to null and "current" to true.
- Dates use YYYY-MM when the month is known, otherwise YYYY. Unknown dates are null.
- Every quantified claim (percentages, money, counts, durations) goes into "roleMetrics" of its role and into "metrics" of any story built from it.
- Build a STAR story for each achievement that has a clear situation and outcome. Do not invent details.
- Skills appear once each, even when they are mentioned in several roles.
- Use empty arrays for sections that are absent. Never omit a field.`

const coverLetterSchema = `{
  "paragraphs": [
    {"id": "", "index": 0, "text": "", "function": "opening|body|closing|other", "purpose": "", "tags": [""]}
  ],
  "stories": [
    {
      "id": "",
      "title": "",
      "situation": "",
      "task": "",
      "action": "",
      "result": "",
      "content": "",
      "metrics": [{"value": "", "context": "", "type": ""}],
      "tags": [""]
    }
  ],
  "templateSignals": {
    "tone": "",
    "greeting": "",
    "signOff": "",
    "reusablePhrases": [""],
    "personalizationPoints": [""]
  }
}`

const coverLetterRules = `- Keep every paragraph in order; "index" starts at 0.
- "function" is "opening" for the first paragraph, "closing" for the last, "body" otherwise.
- Extract one STAR story per concrete accomplishment. Leave STAR parts empty rather than guessing.
- "personalizationPoints" are the sentences that mention the company, role or hiring manager.`

const templateSchema = `{
  "intro": {"id": "", "text": "", "purpose": "", "placeholderCount": 0},
  "bodyParagraphs": [
    {"id": "", "text": "", "purpose": "", "placeholderCount": 0}
  ],
  "closer": {"id": "", "text": "", "purpose": "", "placeholderCount": 0},
  "totalPlaceholders": 0
}`

const templateRules = `- Replace company names, role titles, dates and names of people with placeholders such as [Company], [Role], [Hiring Manager].
- "placeholderCount" counts the placeholders in that section; "totalPlaceholders" is their sum.
- Keep the author's voice. Only replace what is specific to one application.`

const caseStudySchema = `{
  "title": "",
  "client": "",
  "role": "",
  "problem": "",
  "approach": "",
  "outcome": "",
  "metrics": [{"value": "", "context": "", "type": ""}],
  "skills": [""],
  "stories": [
    {"id": "", "title": "", "situation": "", "task": "", "action": "", "result": "", "content": "", "metrics": [], "tags": [""]}
  ]
}`

const caseStudyRules = `- "problem", "approach" and "outcome" summarize the case study in two or three sentences each.
- Every number that describes impact goes into "metrics".`

const linkedInSchema = `{
  "headline": "",
  "summary": "",
  "contactInfo": {"name": "", "email": "", "phone": "", "location": "", "linkedin": "", "website": "", "github": ""},
  "workHistory": [
    {"id": "", "company": "", "title": "", "location": "", "startDate": "", "endDate": "", "current": false, "description": "", "achievements": [""], "technologies": [""], "roleMetrics": [], "stories": []}
  ],
  "education": [
    {"id": "", "institution": "", "degree": "", "fieldOfStudy": "", "startDate": "", "endDate": "", "gpa": ""}
  ],
  "skills": [{"name": "", "category": ""}],
  "certifications": [{"id": "", "name": "", "issuer": "", "date": ""}]
}`

const jobMatchSchema = `{
  "matchScore": 0,
  "summary": "",
  "skillMatches": [{"id": "", "requirement": "", "evidence": "", "strength": "strong|partial|weak"}],
  "gapAreas": [{"id": "", "area": "", "severity": "high|medium|low", "suggestion": ""}]
}`

const jobMatchRules = `- "matchScore" is a number from 0 to 100.
- Every requirement in the job description gets one entry in "skillMatches" or "gapAreas", never both.
- "evidence" quotes or paraphrases the candidate text. Leave it empty when there is none.`

const contentTagsSchema = `{
  "tags": [{"label": "", "category": "skill|industry|achievement|trait|topic", "confidence": 0.0}]
}`

const contentTagsRules = `- Use short lowercase labels.
- "confidence" is between 0 and 1.
- Return at most 20 tags, most relevant first.`

const evaluationSchema = `{
  "accuracy": "",
  "relevance": "",
  "personalization": "",
  "clarity_tone": "",
  "framework": "",
  "go_nogo": "",
  "rationale": ""
}`
