package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/meetease/internal/config"
	"example.com/meetease/pkg/audio"
	"example.com/meetease/pkg/media"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"join", "create"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	assert.Error(t, joinCmd.Args(joinCmd, nil), "join needs a room")
	assert.NoError(t, joinCmd.Args(joinCmd, []string{"abc12345"}))

	for _, flag := range []string{"relay", "stun", "turn", "turn-user", "turn-pass", "camera", "mic", "screen"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestCameraDevice(t *testing.T) {
	t.Run("tone microphone", func(t *testing.T) {
		dev, ok := cameraDevice(&config.Config{Camera: "cam.ivf", Microphone: config.MicrophoneTone}).(*media.FileDevice)
		require.True(t, ok)
		assert.Equal(t, "cam.ivf", dev.VideoPath)
		assert.Empty(t, dev.AudioPath)
		require.NotNil(t, dev.NewAudio)

		src, err := dev.NewAudio()
		require.NoError(t, err)
		assert.IsType(t, &audio.ToneSource{}, src)
	})

	t.Run("recorded microphone", func(t *testing.T) {
		dev, ok := cameraDevice(&config.Config{Microphone: "mic.ogg"}).(*media.FileDevice)
		require.True(t, ok)
		assert.Equal(t, "mic.ogg", dev.AudioPath)
		assert.Nil(t, dev.NewAudio)
	})
}

func TestRemoteLevelDefaultsToSilence(t *testing.T) {
	r := &remoteMedia{}
	assert.Equal(t, audio.SilenceDBFS, r.level())
}

func TestCreateWithoutJoining(t *testing.T) {
	t.Setenv("MEET_RELAY_URL", "")
	rootCmd.SetArgs([]string{"create", "--no-join"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		noJoin = false
	})

	require.NoError(t, rootCmd.Execute())
}
