package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeErrorString(t *testing.T) {
	err := New(PrematureEndOfData, 128)
	assert.Contains(t, err.Error(), "PrematureEndOfData")
	assert.Contains(t, err.Error(), "128 bits")
}

func TestDecodeErrorIs(t *testing.T) {
	var err error = New(ByteOrderChangeWithinByte, 5)
	assert.True(t, errors.Is(err, New(ByteOrderChangeWithinByte, 999)))
	assert.False(t, errors.Is(err, New(PrematureEndOfData, 5)))
}

func TestAsKind(t *testing.T) {
	err := Newf(InvalidVariantUnsignedSelector, 64, "value %d not covered", 42)
	assert.True(t, AsKind(err, InvalidVariantUnsignedSelector))
	assert.False(t, AsKind(err, InvalidVariantSignedSelector))
	assert.Contains(t, err.Error(), "value 42 not covered")
}
