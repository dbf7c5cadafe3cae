package attach

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sink struct{ n int }

func TestAttachDetach(t *testing.T) {
	p := New[*sink]()
	assert.False(t, p.Attached())

	s := &sink{n: 1}
	assert.NoError(t, p.Attach(s))
	assert.True(t, p.Attached())
	assert.Equal(t, s, p.Get())

	assert.ErrorIs(t, p.Attach(&sink{n: 2}), ErrTooMany)

	assert.NoError(t, p.Detach())
	assert.False(t, p.Attached())
	assert.ErrorIs(t, p.Detach(), ErrNotFound)
}

func TestDisabledGetReturnsZeroValue(t *testing.T) {
	p := New[*sink]()
	s := &sink{n: 7}
	require := assert.New(t)
	require.NoError(p.Attach(s))
	p.SetEnabled(false)
	require.Nil(p.Get())
	require.True(p.Attached())
}

type notifier struct{ last int }

func (n *notifier) AttachNotify(numAttached int) { n.last = numAttached }

func TestNotifier(t *testing.T) {
	p := New[*sink]()
	n := &notifier{}
	p.SetNotifier(n)

	require := assert.New(t)
	require.NoError(p.Attach(&sink{}))
	require.Equal(1, n.last)
	require.NoError(p.Detach())
	require.Equal(0, n.last)
}
