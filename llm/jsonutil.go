package llm

import (
	"regexp"
	"strings"
)

var (
	// fencedJSONRe pulls a JSON object out of a markdown code fence,
	// with or without the "json" language tag.
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// bareObjectRe greedily matches the outermost JSON object in free text.
	bareObjectRe = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	// trailingCommaRe matches a trailing comma before a closing ] or }.
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of a model response. Models wrap
// structured output in markdown fences, sprinkle // comments, and leave
// trailing commas; this strips all three so the result can be unmarshaled.
// Returns "" when no object is found.
func ExtractJSON(content string) string {
	raw := locateObject(content)
	if raw == "" {
		return ""
	}
	return sanitizeJSON(raw)
}

func locateObject(content string) string {
	if m := fencedJSONRe.FindStringSubmatch(content); len(m) > 1 {
		return m[1]
	}
	return bareObjectRe.FindString(content)
}

func sanitizeJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaRe.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment drops a // comment from a line unless the slashes sit
// inside a quoted string (URLs in field values stay intact).
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		switch {
		case escaped:
			escaped = false
		case line[i] == '\\' && inString:
			escaped = true
		case line[i] == '"':
			inString = !inString
		case !inString && line[i] == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
