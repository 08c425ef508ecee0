package structcomm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cedeva-recon/internal/structcomm"
)

func TestGenerate(t *testing.T) {
	// 123 % 97 = 26
	assert.Equal(t, "000000012326", structcomm.Generate(123))
	// 1 % 97 = 1
	assert.Equal(t, "000000000101", structcomm.Generate(1))
}

func TestGenerate_ChecksumZeroBecomes97(t *testing.T) {
	// 97 % 97 = 0, the convention substitutes 97
	assert.Equal(t, "000000009797", structcomm.Generate(97))
}

func TestValidate(t *testing.T) {
	assert.True(t, structcomm.Validate("000000012326"))
	assert.True(t, structcomm.Validate("+++000/0000/12326+++"))
	assert.True(t, structcomm.Validate("000000009797"))

	assert.False(t, structcomm.Validate("000000012327"), "wrong checksum")
	assert.False(t, structcomm.Validate(""))
	assert.False(t, structcomm.Validate("12326"), "too short")
	assert.False(t, structcomm.Validate("ABC000012326"), "non-digits")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "000000012326", structcomm.Normalize("+++000/0000/12326+++"))
	assert.Equal(t, "000000012326", structcomm.Normalize("000 0000 12326"))
	assert.Equal(t, "", structcomm.Normalize("REF 12326"), "letters are not formatting")
	assert.Equal(t, "", structcomm.Normalize("0012326"), "not 12 digits")
}

func TestExtractBookingID(t *testing.T) {
	id, ok := structcomm.ExtractBookingID("+++000/0000/12326+++")
	assert.True(t, ok)
	assert.Equal(t, 123, id)

	_, ok = structcomm.ExtractBookingID("000000012327")
	assert.False(t, ok, "invalid checksum must not yield an id")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "+++000/0000/12326+++", structcomm.Format("000000012326"))
	assert.Equal(t, "12326", structcomm.Format("12326"), "non-12-digit input returned unchanged")
}

func TestGenerateValidateRoundTrip(t *testing.T) {
	for _, bookingID := range []int{1, 42, 97, 194, 9999, 1234567890} {
		digits := structcomm.Generate(bookingID)
		assert.True(t, structcomm.Validate(digits), "generated communication for %d must validate", bookingID)

		extracted, ok := structcomm.ExtractBookingID(digits)
		assert.True(t, ok)
		assert.Equal(t, bookingID, extracted)
	}
}
