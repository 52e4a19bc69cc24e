package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCensor(t *testing.T) {
	req := require.New(t)

	c, err := NewCensor([]string{"weasel", "toad"}, '*')
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain match",
			input:    "what a weasel move",
			expected: "what a ****** move",
		},
		{
			name:     "case insensitive",
			input:    "WEASEL and Toad",
			expected: "****** and ****",
		},
		{
			name:     "leet speak",
			input:    "such a w34$3l",
			expected: "such a ******",
		},
		{
			name:     "punctuation inside the word",
			input:    "t.o.a.d alert",
			expected: "******* alert",
		},
		{
			name:     "repeated matches keep spacing",
			input:    "toad toad toad",
			expected: "**** **** ****",
		},
		{
			name:     "nothing to censor",
			input:    "perfectly fine message",
			expected: "perfectly fine message",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, c.Censor(tt.input))
		})
	}
}
