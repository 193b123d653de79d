package topic

import (
	"github.com/stretchr/testify/assert"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("a/b"))
	assert.NoError(t, ValidateName("/"))
	assert.ErrorIs(t, ValidateName(""), ErrInvalidTopic)
	assert.ErrorIs(t, ValidateName("a/+"), ErrInvalidTopic)
	assert.ErrorIs(t, ValidateName("a/#"), ErrInvalidTopic)
	assert.ErrorIs(t, ValidateName(strings.Repeat("x", 65536)), ErrInvalidTopic)
}

func TestValidateFilter(t *testing.T) {
	valid := []string{"#", "+", "a/#", "a/+/c", "+/+", "/", "$SYS/#"}
	for _, filter := range valid {
		assert.NoError(t, ValidateFilter(filter), filter)
	}
	invalid := []string{"", "a/#/c", "a#", "a/b+", "#/a", "a/+b"}
	for _, filter := range invalid {
		assert.ErrorIs(t, ValidateFilter(filter), ErrInvalidTopic, filter)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		filter string
		name   string
		expect bool
	}{
		{"a/b", "a/b", true},
		{"a/b", "a/c", false},
		{"a/+", "a/b", true},
		{"a/+", "a/b/c", false},
		{"a/#", "a", true},
		{"a/#", "a/b/c", true},
		{"#", "a/b", true},
		{"+/+", "/x", true},
		{"#", "$SYS/load", false},
		{"+/load", "$SYS/load", false},
		{"$SYS/#", "$SYS/load", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, Match(tt.filter, tt.name), "%s vs %s", tt.filter, tt.name)
	}
}
