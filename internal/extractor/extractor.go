// Package extractor recovers candidate reply suggestions from raw,
// unstructured model output.
//
// The model is asked for structured output but is not guaranteed to comply,
// so extraction is an ordered cascade of strategies that trades precision
// for recall: a JSON block is best, quoted strings are good, a numbered
// list is acceptable, and bare lines are a last resort. The caller must
// substitute a fallback when the whole cascade yields nothing.
package extractor

import (
	"encoding/json"
	"regexp"
	"strings"
)

// maxSuggestions bounds every extraction result.
const maxSuggestions = 3

// strategy attempts one extraction approach. ok reports whether the
// strategy considers its result usable; the cascade stops at the first
// usable result.
type strategy func(raw string) (suggestions []string, ok bool)

var cascade = []strategy{
	fromJSONBlock,
	fromQuotes,
	fromNumberedList,
	fromLines,
}

// Suggestions parses raw model text into at most three sendable reply
// strings. It returns an empty slice when nothing usable is found.
func Suggestions(raw string) []string {
	for _, s := range cascade {
		if out, ok := s(raw); ok {
			return out
		}
	}
	return []string{}
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*"suggestions".*\}`)

// fromJSONBlock finds a JSON object substring carrying a "suggestions"
// array and takes up to three non-empty entries from it.
func fromJSONBlock(raw string) ([]string, bool) {
	block := jsonBlockRe.FindString(raw)
	if block == "" {
		return nil, false
	}

	var payload struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return nil, false
	}

	var out []string
	for _, s := range payload.Suggestions {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxSuggestions {
			break
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

var quotedRe = regexp.MustCompile(`"([^"]{5,100})"`)

// metaPhrases mark quoted strings that are commentary about the replies
// rather than replies themselves.
var metaPhrases = []string{"their message", "suggestion", "reply "}

// fromQuotes extracts double-quoted substrings of plausible reply length,
// dropping quoted meta-commentary. Needs at least two survivors to be
// considered a real list of options.
func fromQuotes(raw string) ([]string, bool) {
	matches := quotedRe.FindAllStringSubmatch(raw, -1)
	if len(matches) < 2 {
		return nil, false
	}

	var out []string
	for _, m := range matches {
		if isMeta(m[1]) {
			continue
		}
		out = append(out, m[1])
	}
	if len(out) < 2 {
		return nil, false
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out, true
}

func isMeta(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range metaPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var numberedRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s*"?(.+?)"?\s*$`)

// fromNumberedList matches "1." / "1)" style lines, optionally quoted.
func fromNumberedList(raw string) ([]string, bool) {
	matches := numberedRe.FindAllStringSubmatch(raw, -1)
	if len(matches) < 2 {
		return nil, false
	}

	out := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		out = append(out, m[1])
		if len(out) == maxSuggestions {
			break
		}
	}
	return out, true
}

// fromLines is the last resort: split on newlines and keep lines that look
// like sendable messages rather than commentary.
func fromLines(raw string) ([]string, bool) {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 5 || len(line) >= 100 {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "here") || strings.Contains(lower, "option") {
			continue
		}
		out = append(out, line)
		if len(out) == maxSuggestions {
			break
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
