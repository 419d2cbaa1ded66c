package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("reviewer@example.com"))
	assert.NoError(t, ValidateEmail("first.last+tag@sub.example.org"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("no-at-sign"))
	assert.Error(t, ValidateEmail("user@localhost"))
}

func TestValidateHours(t *testing.T) {
	assert.NoError(t, ValidateHours(40))
	assert.NoError(t, ValidateHours(0.5))
	assert.Error(t, ValidateHours(0))
	assert.Error(t, ValidateHours(-3))
	assert.Error(t, ValidateHours(math.NaN()))
	assert.Error(t, ValidateHours(math.Inf(1)))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "looks good", SanitizeString("  looks\x00 good\x07 "))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline two"))
}
