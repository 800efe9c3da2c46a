package waitevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRoundTrip(t *testing.T) {
	tests := []struct {
		Class Class
		Event uint32
	}{
		{ClassLWLock, 1},
		{ClassLock, 42},
		{ClassIPC, 0},
		{ClassIO, eventMask},
		{ClassTimeout, 7},
	}

	for _, test := range tests {
		info := Make(test.Class, test.Event)
		assert.Equal(t, test.Class, info.Class())
		assert.Equal(t, test.Event, info.Event())
		assert.True(t, info.Waiting())
	}
}

func TestEventOverflowIsMasked(t *testing.T) {
	info := Make(ClassClient, 0x01FFFFFF)
	assert.Equal(t, ClassClient, info.Class())
	assert.Equal(t, uint32(eventMask), info.Event())
}

func TestZeroMeansNotWaiting(t *testing.T) {
	var info Info
	assert.False(t, info.Waiting())
	assert.Equal(t, "None", info.String())
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass("lwlock")
	require.NoError(t, err)
	assert.Equal(t, ClassLWLock, c)

	_, err = ParseClass("nope")
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "Lock:3", Make(ClassLock, 3).String())
	assert.Equal(t, "IO", ClassIO.String())
}
