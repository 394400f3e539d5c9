package hackernews

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"strings"
)

// Source marks postings originating from the HN hiring threads.
const Source = "hackernews"

type Jobs struct {
	Items []*Job
}

type Job struct {
	ID          string `json:"id,omitempty"`
	Source      string `json:"source,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	PostedAt    string `json:"posted_at,omitempty"`

	// Tags are attached by the deterministic enrichment step.
	Tags []string `json:"tags,omitempty"`

	// Screen holds the screening verdict once the job passed that stage.
	Screen *Screening `json:"screen,omitempty"`
}

// Screening is the per-job result of the resume screening stage.
type Screening struct {
	Score  float64 `json:"score,omitempty"`
	Reason string  `json:"reason,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Job converts a raw hiring-thread comment into a normalized posting.
// Returns nil for comments with no usable text.
func (cm *Comment) Job() *Job {
	text := strings.TrimSpace(StripHTML(cm.Text))
	if text == "" {
		return nil
	}

	headline, _, _ := strings.Cut(text, "\n")
	company, title, location := parseHeadline(headline)

	return &Job{
		ID:          cm.ID,
		Source:      Source,
		Title:       title,
		Company:     company,
		Location:    location,
		Description: text,
		URL:         itemURL + cm.ID,
		PostedAt:    cm.CreatedAt,
	}
}

// parseHeadline splits the conventional "Company | Role | Location | ..."
// first line of a posting. The field order is a convention, not a rule, so
// location is recognized by keywords with a positional fallback.
func parseHeadline(headline string) (company, title, location string) {
	parts := strings.Split(headline, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	company = parts[0]

	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		if location == "" && looksLikeLocation(part) {
			location = part
			continue
		}
		if title == "" {
			title = part
		}
	}

	if location == "" && len(parts) > 2 {
		location = parts[2]
	}

	return company, title, location
}

func looksLikeLocation(s string) bool {
	lower := strings.ToLower(s)
	for _, keyword := range []string{"remote", "hybrid", "onsite", "on-site", "relocation"} {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// StripHTML converts the HTML fragment of a comment body to plain text.
// Paragraph tags become newlines, all other tags are dropped and entities
// are unescaped.
func StripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '<':
			inTag = true
			if strings.HasPrefix(strings.ToLower(s[i:]), "<p") {
				b.WriteByte('\n')
			}
		case s[i] == '>':
			inTag = false
		case !inTag:
			b.WriteByte(s[i])
		}
	}

	return html.UnescapeString(b.String())
}

func (j *Jobs) Len() int {
	return len(j.Items)
}

func (j *Jobs) IDs() []string {
	ids := make([]string, 0, len(j.Items))
	for _, job := range j.Items {
		ids = append(ids, job.ID)
	}
	return ids
}

func (j *Jobs) FindByID(id string) *Job {
	for _, job := range j.Items {
		if job.ID == id {
			return job
		}
	}
	return nil
}

// Take returns a list with at most n leading jobs. The receiver is not modified.
func (j *Jobs) Take(n int) *Jobs {
	if n < 0 || n > len(j.Items) {
		n = len(j.Items)
	}
	return &Jobs{Items: j.Items[:n]}
}

// Dedupe removes postings sharing an ID, keeping the first occurrence.
func (j *Jobs) Dedupe() {
	seen := make(map[string]struct{}, len(j.Items))
	kept := j.Items[:0]
	for _, job := range j.Items {
		if _, ok := seen[job.ID]; ok {
			continue
		}
		seen[job.ID] = struct{}{}
		kept = append(kept, job)
	}
	j.Items = kept
}

// MatchingTerms returns jobs whose title or description mention at least one
// of the given terms, case-insensitively.
func (j *Jobs) MatchingTerms(terms []string) *Jobs {
	matched := &Jobs{}
	for _, job := range j.Items {
		haystack := strings.ToLower(job.Title + "\n" + job.Description)
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			if strings.Contains(haystack, term) {
				matched.Items = append(matched.Items, job)
				break
			}
		}
	}
	return matched
}

// ReportByCompany groups shortlisted postings for console reporting.
func (j *Jobs) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range j.Items {
		entry := map[string]string{
			"title":    job.Title,
			"url":      job.URL,
			"location": job.Location,
		}
		if job.Screen != nil {
			entry["score"] = fmt.Sprintf("%.2f", job.Screen.Score)
			entry["reason"] = job.Screen.Reason
		}
		report[job.Company] = append(report[job.Company], entry)
	}
	return report
}

func (j *Jobs) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j); err != nil {
		return "", err
	}
	return file.Name(), nil
}
