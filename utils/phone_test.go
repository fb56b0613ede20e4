package utils

import (
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicebot/internal/models"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"9588423093", "+919588423093"},
		{"95884 23093", "+919588423093"},
		{"(958) 842-3093", "+919588423093"},
		{"+91 95884 23093", "+919588423093"},
		{"919588423093", "+919588423093"},
		{"447911123456", "+447911123456"},
		{"", "+"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPhone(tt.raw))
		})
	}
}

func TestFormatPhoneTenDigitsAlwaysGetsIndianPrefix(t *testing.T) {
	pattern := regexp.MustCompile(`^\+91\d{10}$`)
	for i := 0; i < 500; i++ {
		raw := fmt.Sprintf("%010d", i*19999999+1234567)
		got := FormatPhone(raw)
		require.Len(t, got, 13, raw)
		require.Regexp(t, pattern, got, raw)
	}
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("+919588423093"))
	assert.False(t, IsValidPhone("+91958842"), "too short")
	assert.False(t, IsValidPhone("+919999423093"), "repeated digits")
	assert.False(t, IsValidPhone("9588400093"), "repeated zeros")
	assert.False(t, IsValidPhone(""))
}

func TestIsValidPhoneRejectsAnyTripleRun(t *testing.T) {
	base := "9528413596"
	for d := '0'; d <= '9'; d++ {
		for pos := 0; pos+3 <= len(base); pos++ {
			raw := base[:pos] + string([]rune{d, d, d}) + base[pos+3:]
			assert.False(t, IsValidPhone(raw), raw)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("9588423093")
	require.NoError(t, err)
	assert.Equal(t, "+919588423093", got)

	_, err = NormalizePhone("1111111111")
	assert.True(t, errors.Is(err, models.ErrInvalidPhone))

	_, err = NormalizePhone("abc")
	assert.True(t, errors.Is(err, models.ErrInvalidPhone))
}
