package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPassword(t *testing.T) {
	assert.True(t, ValidPassword("abcdefg1"))
	assert.False(t, ValidPassword("abcdefgh"))
	assert.False(t, ValidPassword("12345678"))
	assert.False(t, ValidPassword("a1"))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("Student@UOL.edu.pk"))
	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail(""))
}

func TestValidCalculationName(t *testing.T) {
	assert.True(t, ValidCalculationName("Fall 2024"))
	assert.False(t, ValidCalculationName("   "))
	long := make([]rune, NameMaxLength+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.False(t, ValidCalculationName(string(long)))
}

func TestGradeTag(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	type row struct {
		Grade string `validate:"grade"`
	}
	assert.NoError(t, v.Struct(row{Grade: "B+"}))
	assert.NoError(t, v.Struct(row{Grade: " A- "}))
	assert.Error(t, v.Struct(row{Grade: "b+"}))
	assert.Error(t, v.Struct(row{Grade: "A+"}))
}
