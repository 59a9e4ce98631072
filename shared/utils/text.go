package utils

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	jsonFenceRegex = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	anyFenceRegex  = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ExtractJSONObject pulls a JSON object out of model output that may wrap it in code
// fences or prose. Returns "" when nothing parses.
func ExtractJSONObject(rawText string) string {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return ""
	}

	for _, re := range []*regexp.Regexp{jsonFenceRegex, anyFenceRegex} {
		if m := re.FindStringSubmatch(rawText); len(m) > 1 {
			if out := repairJSONObject(m[1]); out != "" {
				return out
			}
		}
	}

	first := strings.Index(rawText, "{")
	if first < 0 {
		return ""
	}
	candidate := rawText[first:]
	if last := strings.LastIndex(candidate, "}"); last > 0 {
		if out := repairJSONObject(candidate[:last+1]); out != "" {
			return out
		}
	}
	// truncated output: try closing what is open
	return repairJSONObject(candidate)
}

func repairJSONObject(s string) string {
	s = strings.TrimSpace(s)
	if json.Valid([]byte(s)) {
		return s
	}
	if !strings.HasPrefix(s, "{") {
		return ""
	}
	closed := s + missingClosers(s)
	if json.Valid([]byte(closed)) {
		return closed
	}
	return ""
}

// missingClosers returns the brackets needed to close every open object and array,
// ignoring brackets inside strings.
func missingClosers(s string) string {
	var stack []rune
	inString, escape := false, false
	for _, r := range s {
		if escape {
			escape = false
			continue
		}
		switch {
		case r == '\\' && inString:
			escape = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '{':
			stack = append(stack, '}')
		case r == '[':
			stack = append(stack, ']')
		case r == '}' || r == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var sb strings.Builder
	if inString {
		sb.WriteRune('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteRune(stack[i])
	}
	return sb.String()
}

// StringShort cuts s to at most maxLen runes, ending with "..." when cut.
func StringShort(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// TailRunes returns the last n runes of s.
func TailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
