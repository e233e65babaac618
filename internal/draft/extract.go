package draft

import (
	"fmt"
	"regexp"
	"strings"
)

const maxTags = 8

var (
	summaryHeadingRe = regexp.MustCompile(`(?i)^#{1,6}\s*(?:one[- ]line\s+summary|tl;?dr|summary)\s*:?\s*$`)
	summaryLabelRe   = regexp.MustCompile(`(?i)^(?:\*\*)?(?:one[- ]line\s+summary|tl;?dr|summary)(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.+)$`)
	tagsHeadingRe    = regexp.MustCompile(`(?i)^#{1,6}\s*tags\s*:?\s*$`)
	tagsLabelRe      = regexp.MustCompile(`(?i)^(?:\*\*)?tags(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.+)$`)
	listMarkerRe     = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+`)
)

// Fields is what extraction recovered from generated markdown. Missing
// fields are empty.
type Fields struct {
	Title   string
	Summary string
	Tags    []string
}

// ExtractFields reads the leading heading, the labelled one-line summary and
// the labelled tag list.
func ExtractFields(markdown string) Fields {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	var fields Fields
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case fields.Title == "" && strings.HasPrefix(line, "# "):
			fields.Title = cleanInline(strings.TrimPrefix(line, "# "))
		case fields.Summary == "" && summaryHeadingRe.MatchString(line):
			if next, ok := nextContentLine(lines, i+1); ok {
				fields.Summary = cleanInline(next)
			}
		case fields.Summary == "" && summaryLabelRe.MatchString(line):
			fields.Summary = cleanInline(summaryLabelRe.FindStringSubmatch(line)[1])
		case len(fields.Tags) == 0 && tagsHeadingRe.MatchString(line):
			fields.Tags = collectTagSection(lines[i+1:])
		case len(fields.Tags) == 0 && tagsLabelRe.MatchString(line):
			fields.Tags = splitTags(tagsLabelRe.FindStringSubmatch(line)[1])
		}
	}
	return fields
}

// FallbackSummary is the deterministic summary used when none is extracted.
func FallbackSummary(title, category string) string {
	return fmt.Sprintf("What %q means for your %s decisions.", title, categoryLabel(category))
}

// FallbackTags is the deterministic tag list used when none is extracted.
func FallbackTags(category string) []string {
	tags := []string{"personal-finance"}
	if slug := Slugify(category); category != "" && slug != "personal-finance" {
		tags = append([]string{slug}, tags...)
	}
	return tags
}

func categoryLabel(category string) string {
	if category == "" {
		return "financial"
	}
	return strings.ToLower(category)
}

func nextContentLine(lines []string, from int) (string, bool) {
	for _, raw := range lines[from:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return "", false
		}
		return line, true
	}
	return "", false
}

func collectTagSection(lines []string) []string {
	var tags []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			if len(tags) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			break
		}
		tags = append(tags, splitTags(listMarkerRe.ReplaceAllString(line, ""))...)
	}
	return dedupeTags(tags)
}

func splitTags(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	return dedupeTags(parts)
}

func dedupeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		tag := strings.ToLower(strings.Trim(cleanInline(t), "#` "))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

func cleanInline(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	return strings.TrimSpace(s)
}
