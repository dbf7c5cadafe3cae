package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNoOpDoesNotPanic(t *testing.T) {
	var l Logger = NoOp{}
	l.Debug("x")
	l.Info("y", zap.Int("n", 1))
	l.Warn("z")
	l.Error("w")
	assert.NotNil(t, l.With(zap.String("k", "v")))
}

func TestNewDevelopment(t *testing.T) {
	l, err := NewDevelopment()
	require := assert.New(t)
	require.NoError(err)
	require.NotNil(l)
	derived := l.With(zap.String("component", "vm"))
	require.NotNil(derived)
}
