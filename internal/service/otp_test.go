package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "123456", onlyDigits("123456"))
	assert.Equal(t, "123456", onlyDigits(" 123 456 "))
	assert.Equal(t, "123456", onlyDigits("1-2-3-4-5-6"))
	assert.Equal(t, "", onlyDigits("abc"))
	// Pasted with an invisible zero-width space.
	assert.Equal(t, "123456", onlyDigits("123​456"))
}

func TestDeriveFullName(t *testing.T) {
	assert.Equal(t, "budi santoso", deriveFullName("budi.santoso@example.com"))
	assert.Equal(t, "rina", deriveFullName("rina@example.com"))
	assert.Equal(t, "Pengguna", deriveFullName("@example.com"))
	assert.Equal(t, "Pengguna", deriveFullName("no-at-sign"))
}

func TestGenerateOTP(t *testing.T) {
	code := generateOTP(6)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestMaskSessionID(t *testing.T) {
	assert.Equal(t, "1234***", maskSessionID("1234567890"))
	assert.Equal(t, "****", maskSessionID("abc"))
	assert.Equal(t, "****", maskSessionID("  "))
}
