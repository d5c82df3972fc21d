package generation

import (
	"regexp"
)

// Pre-compiled patterns for pulling a JSON array out of model output.
var (
	// arrayBlockPattern matches JSON arrays inside markdown code blocks.
	arrayBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	// arrayPattern matches any JSON array (greedy fallback).
	arrayPattern = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// extractJSONArray extracts a JSON array from a completion string. Models
// commonly wrap output in markdown fences and leave trailing commas.
func extractJSONArray(content string) string {
	// Try markdown code block first
	if matches := arrayBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		return cleanJSON(matches[1])
	}
	// Fallback to raw array
	if match := arrayPattern.FindString(content); match != "" {
		return cleanJSON(match)
	}
	return ""
}

// cleanJSON removes trailing commas before } or ].
func cleanJSON(raw string) string {
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}
