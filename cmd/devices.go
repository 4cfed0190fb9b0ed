package cmd

import (
	"log/slog"

	"example.com/meetease/internal/config"
	"example.com/meetease/pkg/audio"
	"example.com/meetease/pkg/media"
)

const (
	toneFrequency = 440
	toneAmplitude = 0.2
)

// cameraDevice captures the microphone and camera described by cfg.
func cameraDevice(cfg *config.Config) media.Device {
	dev := &media.FileDevice{VideoPath: cfg.Camera}
	switch cfg.Microphone {
	case config.MicrophoneTone:
		dev.NewAudio = func() (media.FrameSource, error) {
			tone, err := audio.NewToneSource(toneFrequency, toneAmplitude)
			if err != nil {
				return nil, err
			}
			return tone, nil
		}
	default:
		dev.AudioPath = cfg.Microphone
	}
	slog.Debug("capture device", "camera", cfg.Camera, "microphone", cfg.Microphone)
	return dev
}

// displayDevice captures the screen.
func displayDevice(cfg *config.Config) media.Device {
	return &media.FileDevice{VideoPath: cfg.Screen}
}
