package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+52 (55) 1234-5678", "+525512345678"},
		{"5215512345678", "5215512345678"},
		{"  ", ""},
		{"+", ""},
		{"tel: 555 0101", "5550101"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), tt.in)
	}
}

func TestPhoneDigitsAndValidity(t *testing.T) {
	assert.Equal(t, "525512345678", PhoneDigits("+52 55 1234 5678"))
	assert.True(t, IsValidPhone("+52 55 1234 5678"))
	assert.False(t, IsValidPhone("12345"))
	assert.False(t, IsValidPhone("1234567890123456"))
}

func TestNormalizeString(t *testing.T) {
	assert.Equal(t, "mesa: A12 sucursal: centro", NormalizeString("  mesa:   A12\n\tsucursal: centro "))
}
