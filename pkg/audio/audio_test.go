package audio

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToneIsLouderThanSilence(t *testing.T) {
	tone, err := NewToneSource(440, 0.5)
	require.NoError(t, err)
	quiet, err := NewToneSource(0, 0)
	require.NoError(t, err)

	loud := meterAfter(t, tone, 10)
	silent := meterAfter(t, quiet, 10)

	assert.Greater(t, loud, silent)
	assert.Greater(t, loud, -20.0)
}

func TestMeterSkipsEmptyPayloads(t *testing.T) {
	m, err := NewLevelMeter()
	require.NoError(t, err)

	m.Feed(&rtp.Packet{})

	assert.Equal(t, SilenceDBFS, m.Level())
	assert.Zero(t, m.Packets())
}

func meterAfter(t *testing.T, src *ToneSource, frames int) float64 {
	t.Helper()
	m, err := NewLevelMeter()
	require.NoError(t, err)

	for i := 0; i < frames; i++ {
		frame, err := src.ReadFrame()
		require.NoError(t, err)
		m.Feed(&rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i)}, Payload: frame.Data})
	}
	require.EqualValues(t, frames, m.Packets())
	return m.Level()
}
