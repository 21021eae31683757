package resume

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultSkills is the keyword dictionary used by TextExtractor.
var DefaultSkills = []string{
	"JavaScript", "TypeScript", "Python", "Java", "C++", "C#", "Go",
	"React", "Angular", "Vue", "Node.js", "Express", "Django", "Flask", "Spring", "ASP.NET",
	"HTML", "CSS", "Bootstrap", "Tailwind", "SASS", "LESS",
	"SQL", "MySQL", "PostgreSQL", "MongoDB", "Redis",
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Jenkins",
	"Git", "GitHub", "GitLab", "JIRA", "Confluence",
	"Agile", "Scrum", "DevOps", "CI/CD", "Microservices",
}

// Skill names that are also ordinary English words only match with their
// exact capitalisation.
var caseSensitiveSkills = map[string]bool{
	"Go":      true,
	"LESS":    true,
	"Express": true,
	"Spring":  true,
}

type section string

const (
	sectionNone           section = ""
	sectionExperience     section = "experience"
	sectionEducation      section = "education"
	sectionSkills         section = "skills"
	sectionProjects       section = "projects"
	sectionCertifications section = "certifications"
	sectionAchievements   section = "achievements"
)

var headings = []struct {
	re *regexp.Regexp
	s  section
}{
	{regexp.MustCompile(`(?i)^(professional\s+)?(experience|work history|employment)\b`), sectionExperience},
	{regexp.MustCompile(`(?i)^(education|academic|qualifications?)\b`), sectionEducation},
	{regexp.MustCompile(`(?i)^(technical\s+)?skills\b`), sectionSkills},
	{regexp.MustCompile(`(?i)^(projects|portfolio|work samples)\b`), sectionProjects},
	{regexp.MustCompile(`(?i)^(certifications|certificates|licenses)\b`), sectionCertifications},
	{regexp.MustCompile(`(?i)^(achievements|awards|honors|recognition)\b`), sectionAchievements},
}

var (
	emailRe    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe    = regexp.MustCompile(`\+?\(?\d[\d\s\-().]{8,}\d`)
	locationRe = regexp.MustCompile(`^[A-Z][a-zA-Z .'-]+,\s*[A-Z][a-zA-Z .'-]+$`)
	nameSkipRe = regexp.MustCompile(`(?i)@|phone|email|address|resume|curriculum|\d`)
	degreeRe   = regexp.MustCompile(`(?i)bachelor|master|phd|diploma|certificate|degree|b\.?sc|m\.?sc|university|college`)
)

// TextExtractor is a rule-based extractor for plain text resumes. It finds
// skills by keyword, splits the document into sections on common headings,
// and pulls contact details with regular expressions.
type TextExtractor struct {
	skills []*skillMatcher
}

type skillMatcher struct {
	name string
	re   *regexp.Regexp
}

// NewTextExtractor builds an extractor for the given skill dictionary. A nil
// dictionary uses DefaultSkills.
func NewTextExtractor(skills []string) *TextExtractor {
	if skills == nil {
		skills = DefaultSkills
	}
	e := &TextExtractor{}
	for _, s := range skills {
		flags := "(?i)"
		if caseSensitiveSkills[s] {
			flags = ""
		}
		// Boundaries exclude characters that continue a token, so "Java"
		// does not match inside "JavaScript".
		re := regexp.MustCompile(flags + `(^|[^a-zA-Z0-9+#])` + regexp.QuoteMeta(s) + `($|[^a-zA-Z0-9+#])`)
		e.skills = append(e.skills, &skillMatcher{name: s, re: re})
	}
	return e
}

// Parse accepts plain text and markdown resumes.
func (e *TextExtractor) Parse(_ context.Context, f File) (*Parsed, error) {
	if !isText(f) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f.ContentType)
	}
	if !utf8.Valid(f.Data) {
		return nil, fmt.Errorf("%w: %q is not valid UTF-8 text", ErrUnsupportedFormat, f.Name)
	}
	text := strings.TrimSpace(strings.ReplaceAll(string(f.Data), "\r\n", "\n"))
	if text == "" {
		return nil, ErrEmptyResume
	}
	return e.ParseText(text), nil
}

// ParseText extracts structured data from resume text.
func (e *TextExtractor) ParseText(text string) *Parsed {
	p := &Parsed{Text: text}

	for _, m := range e.skills {
		if m.re.MatchString(text) {
			p.Skills = append(p.Skills, m.name)
		}
	}

	cur := sectionNone
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "-*• "))
		if line == "" {
			continue
		}
		if s, ok := heading(line); ok {
			cur = s
			continue
		}

		switch cur {
		case sectionExperience:
			if len(line) > 10 {
				p.Experience = append(p.Experience, line)
			}
		case sectionEducation:
			if degreeRe.MatchString(line) {
				p.Education = append(p.Education, line)
			}
		case sectionProjects:
			if len(line) > 10 {
				p.Projects = append(p.Projects, line)
			}
		case sectionCertifications:
			p.Certifications = append(p.Certifications, line)
		case sectionAchievements:
			if len(line) > 10 {
				p.Achievements = append(p.Achievements, line)
			}
		}
	}

	p.Contact = extractContact(text)
	return p
}

func heading(line string) (section, bool) {
	// Headings are short lines, optionally ending in a colon.
	if len(line) > 40 {
		return sectionNone, false
	}
	line = strings.TrimSuffix(line, ":")
	for _, h := range headings {
		if h.re.MatchString(line) && len(strings.Fields(line)) <= 3 {
			return h.s, true
		}
	}
	return sectionNone, false
}

func extractContact(text string) Contact {
	var c Contact
	c.Email = emailRe.FindString(text)
	c.Phone = strings.TrimSpace(phoneRe.FindString(text))

	lines := strings.Split(text, "\n")
	if len(lines) > 6 {
		lines = lines[:6]
	}
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if c.Name == "" && len(l) > 2 && len(l) < 50 && !nameSkipRe.MatchString(l) {
			if _, isHeading := heading(l); !isHeading {
				c.Name = l
				continue
			}
		}
		if c.Location == "" && locationRe.MatchString(l) {
			c.Location = l
		}
	}
	return c
}

func isText(f File) bool {
	ct := strings.ToLower(f.ContentType)
	if strings.HasPrefix(ct, "text/") {
		return true
	}
	if ct != "" && ct != "application/octet-stream" {
		return false
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".txt", ".md", ".text", "":
		return true
	}
	return false
}
