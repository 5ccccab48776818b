package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "AAPL",
			expected: []string{"AAPL"},
		},
		{
			name:     "two values",
			input:    "AAPL, MSFT",
			expected: []string{"AAPL", "MSFT"},
		},
		{
			name:     "three values with varied spacing",
			input:    "AAPL,  MSFT , GOOG",
			expected: []string{"AAPL", "MSFT", "GOOG"},
		},
		{
			name:     "no spaces after comma",
			input:    "SPY,QQQ",
			expected: []string{"SPY", "QQQ"},
		},
		{
			name:     "trailing comma",
			input:    "SPY,",
			expected: []string{"SPY"},
		},
		{
			name:     "leading comma",
			input:    ",QQQ",
			expected: []string{"QQQ"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
		{
			name:     "multiple commas",
			input:    ",,AAPL,,MSFT,,",
			expected: []string{"AAPL", "MSFT"},
		},
		{
			name:     "dotted share classes",
			input:    "BRK.B, BF.B",
			expected: []string{"BRK.B", "BF.B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseCSV_PreservesInput(t *testing.T) {
	// Verify that the function doesn't modify the input string
	input := "AAPL, MSFT"
	originalInput := input

	_ = ParseCSV(input)

	assert.Equal(t, originalInput, input, "input should not be modified")
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already canonical", input: "AAPL", expected: "AAPL"},
		{name: "lowercase", input: "aapl", expected: "AAPL"},
		{name: "surrounding whitespace", input: "  msft  ", expected: "MSFT"},
		{name: "mixed case with dot", input: "brk.B", expected: "BRK.B"},
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSymbol(tt.input))
		})
	}
}
