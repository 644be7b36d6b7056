package scan

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchGlob(t *testing.T) {
	keys := []string{"key1", "key2", "anotherkey"}

	for _, testCase := range []struct {
		name     string
		glob     string
		expected []string
	}{
		{
			name:     "match all",
			glob:     "*",
			expected: []string{"key1", "key2", "anotherkey"},
		},
		{
			name:     "match with ?",
			glob:     "key?",
			expected: []string{"key1", "key2"},
		},
		{
			name:     "match with * at the end",
			glob:     "key*",
			expected: []string{"key1", "key2"},
		},
		{
			name:     "match with * at the beginning",
			glob:     "*key",
			expected: []string{"anotherkey"},
		},
		{
			name:     "match with multiple *",
			glob:     "*key*",
			expected: []string{"key1", "key2", "anotherkey"},
		},
		{
			name:     "no match",
			glob:     "nomatch",
			expected: nil,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			seq := MatchGlob(testCase.glob, slices.Values(keys))
			got := slices.Collect(seq)
			assert.Equal(t, testCase.expected, got)
		})
	}
}
