package utils

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestLetterCode(t *testing.T) {
	cases := map[string]string{
		"Acme Builders": "ACM",
		"o'neil & sons": "ONE",
		"Ünal Yapı":     "NAL",
		"42":            "",
	}
	for in, expected := range cases {
		if got := LetterCode(in, 3); got != expected {
			t.Fatalf("LetterCode(%q) expected %q, got %q", in, expected, got)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 5))
	assert.Equal(t, "héllo", TruncateRunes("héllo wörld", 5))
	assert.Equal(t, "", TruncateRunes("x", 0))
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Name  string `validate:"required"`
		Email string `validate:"omitempty,email"`
	}
	assert.NoError(t, ValidateStruct(input{Name: "Acme"}))

	err := ValidateStruct(input{Email: "nope"})
	var v *ValidationError
	assert.True(t, errors.As(err, &v))
	assert.Equal(t, "invalid input: Email failed email, Name failed required", v.Message)
}

func TestErrorTaxonomy(t *testing.T) {
	wrapped := fmt.Errorf("issue po: %w", NewConflictError("already issued"))
	assert.True(t, IsConflictError(wrapped))
	assert.False(t, IsValidationError(wrapped))

	cause := errors.New("deadlock")
	allocErr := fmt.Errorf("tx: %w", &AllocationError{Scope: "PO/2025", Err: cause})
	assert.ErrorIs(t, allocErr, cause)
	var target *AllocationError
	assert.ErrorAs(t, allocErr, &target)

	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"})))
	assert.False(t, IsDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1213}))
	assert.False(t, IsDuplicateKeyErr(nil))
}
