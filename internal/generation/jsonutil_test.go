package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bare array",
			content: `[{"a":1}]`,
			want:    `[{"a":1}]`,
		},
		{
			name:    "fenced array",
			content: "```json\n[{\"a\":1}]\n```",
			want:    `[{"a":1}]`,
		},
		{
			name:    "fenced without language tag",
			content: "```\n[{\"a\":1}]\n```",
			want:    `[{"a":1}]`,
		},
		{
			name:    "array with surrounding prose",
			content: "Sure, here you go: [{\"a\":1}] Hope that helps!",
			want:    `[{"a":1}]`,
		},
		{
			name:    "trailing comma removed",
			content: `[{"a":1,}]`,
			want:    `[{"a":1}]`,
		},
		{
			name:    "no array present",
			content: "There is nothing here.",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONArray(tt.content))
		})
	}
}
