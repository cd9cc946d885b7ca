package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
)

type sampleInput struct {
	Email string `json:"email" validate:"required,email"`
	State string `json:"state" validate:"required,len=2"`
	Qty   int    `json:"qty" validate:"gt=0"`
}

func TestStructCollectsFieldDetails(t *testing.T) {
	err := Struct(sampleInput{Email: "not-an-email", State: "CAL"})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must be exactly 2 characters", details["state"])
	assert.Equal(t, "must be greater than 0", details["qty"])
}

func TestStructPassesValidInput(t *testing.T) {
	err := Struct(sampleInput{Email: "doc@veloxrx.test", State: "CA", Qty: 3})
	assert.NoError(t, err)
}
