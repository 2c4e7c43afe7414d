package utils

import (
	"encoding/json"
	"sort"
	"strings"
)

// CleanModelJSON removes markdown formatting and extra text around a model
// response, then isolates the first balanced JSON object or array.
func CleanModelJSON(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```JSON", "")
	response = strings.ReplaceAll(response, "```", "")

	// Remove common prefixes that LLMs might add
	prefixes := []string{
		"Here's the JSON:",
		"Here is the JSON:",
		"Here are the facts:",
		"Sure, here you go:",
		"JSON:",
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.TrimSpace(response), prefix) {
			response = strings.TrimPrefix(strings.TrimSpace(response), prefix)
			break
		}
	}

	response = strings.TrimSpace(response)

	objStart := strings.Index(response, "{")
	arrStart := strings.Index(response, "[")

	if objStart != -1 && (arrStart == -1 || objStart < arrStart) {
		objEnd := findMatchingBrace(response, objStart)
		if objEnd != -1 {
			response = response[objStart : objEnd+1]
		}
	} else if arrStart != -1 {
		arrEnd := findMatchingBracket(response, arrStart)
		if arrEnd != -1 {
			response = response[arrStart : arrEnd+1]
		}
	}

	return strings.TrimSpace(response)
}

// SafeJSONObject returns the cleaned payload when it is a valid JSON object,
// and "{}" otherwise. Stored columns stay queryable even on a bad response.
func SafeJSONObject(raw string) string {
	cleaned := CleanModelJSON(raw)
	if strings.HasPrefix(cleaned, "{") && json.Valid([]byte(cleaned)) {
		return cleaned
	}
	return "{}"
}

// ExtractStringList recovers a list of strings from a model response that was
// asked for a JSON string array but may have returned something looser. The
// passes run in order, most to least strict:
//
//  1. a clean JSON array of strings
//  2. an object wrapping such an array under some key
//  3. every string leaf collected from whatever JSON did parse
//  4. the first balanced bracketed list found anywhere in the raw text
//
// Anything unrecoverable yields an empty slice, never an error.
func ExtractStringList(raw string) []string {
	cleaned := CleanModelJSON(raw)

	var strict []string
	if err := json.Unmarshal([]byte(cleaned), &strict); err == nil {
		return normalizeStrings(strict)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err == nil && len(wrapper) > 0 {
		if out, ok := unwrapStringArray(wrapper); ok {
			return out
		}
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		var leaves []string
		collectStringLeaves(parsed, &leaves)
		if len(leaves) > 0 {
			return normalizeStrings(leaves)
		}
	}

	if span, ok := FirstBracketedList(raw); ok {
		var loose []interface{}
		if err := json.Unmarshal([]byte(span), &loose); err == nil {
			var leaves []string
			collectStringLeaves(loose, &leaves)
			if len(leaves) > 0 {
				return normalizeStrings(leaves)
			}
		}
	}

	return []string{}
}

// unwrapStringArray looks for an array of strings under the usual wrapper keys
// first, then under any remaining key in sorted order so the result does not
// depend on map iteration.
func unwrapStringArray(wrapper map[string]json.RawMessage) ([]string, bool) {
	knownKeys := []string{"trivia", "facts", "items", "list", "data", "values"}

	tryKey := func(key string) ([]string, bool) {
		rawValue, ok := wrapper[key]
		if !ok {
			return nil, false
		}
		var arr []string
		if err := json.Unmarshal(rawValue, &arr); err != nil {
			return nil, false
		}
		return normalizeStrings(arr), true
	}

	for _, key := range knownKeys {
		if out, ok := tryKey(key); ok {
			return out, true
		}
	}

	rest := make([]string, 0, len(wrapper))
	for key := range wrapper {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		if out, ok := tryKey(key); ok {
			return out, true
		}
	}
	return nil, false
}

// collectStringLeaves walks a decoded JSON value and gathers every string it
// finds. Map keys are visited in sorted order for a stable result.
func collectStringLeaves(v interface{}, out *[]string) {
	switch value := v.(type) {
	case string:
		*out = append(*out, value)
	case []interface{}:
		for _, item := range value {
			collectStringLeaves(item, out)
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			collectStringLeaves(value[key], out)
		}
	}
}

// FirstBracketedList returns the first balanced [...] span in raw, markdown
// fences stripped but nothing else assumed about the surrounding text.
func FirstBracketedList(raw string) (string, bool) {
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")

	start := strings.Index(raw, "[")
	if start == -1 {
		return "", false
	}
	end := findMatchingBracket(raw, start)
	if end == -1 {
		return "", false
	}
	return raw[start : end+1], true
}

func normalizeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// findMatchingBrace finds the matching closing brace for an opening brace
func findMatchingBrace(s string, start int) int {
	if start >= len(s) || s[start] != '{' {
		return -1
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' && inString {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		switch char {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// findMatchingBracket finds the matching closing bracket for an opening bracket
func findMatchingBracket(s string, start int) int {
	if start >= len(s) || s[start] != '[' {
		return -1
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' && inString {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		switch char {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}
