package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kienanstewart/yactfr/internal/proc"
)

func TestLookupProfileKnownName(t *testing.T) {
	tt, err := lookupProfile("demo")
	require.NoError(t, err)
	require.NotNil(t, tt)
	assert.NotNil(t, tt.PacketHeader)
}

func TestLookupProfileUnknownName(t *testing.T) {
	_, err := lookupProfile("nonexistent")
	assert.Error(t, err)
}

func TestDemoTraceTypeCompiles(t *testing.T) {
	tt, err := lookupProfile("demo")
	require.NoError(t, err)

	pp, err := proc.Build(tt)
	require.NoError(t, err)
	assert.NotEmpty(t, pp.Preamble.Instrs)
}

func TestKnownProfileNamesListsDemo(t *testing.T) {
	assert.Contains(t, knownProfileNames(), "demo")
}
