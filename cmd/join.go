package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"example.com/meetease/client"
	"example.com/meetease/internal/config"
	"example.com/meetease/internal/ui"
	"example.com/meetease/pkg/audio"
	"example.com/meetease/pkg/peer"
)

const joinTimeout = 15 * time.Second

var joinCmd = &cobra.Command{
	Use:   "join <room-id|link>",
	Short: "Join a room by id or link",
	Example: `  meet join 3f9c2a1b
  meet join https://meet.example.com/room/3f9c2a1b --mic tone`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runCall(cmd.Context(), cfg, args[0])
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
}

// remoteMedia consumes the other participant's tracks. Audio feeds the
// level meter shown on the call screen; video is read and discarded.
type remoteMedia struct {
	meter atomic.Pointer[audio.LevelMeter]
}

func (r *remoteMedia) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	log := slog.With("kind", track.Kind().String(), "codec", track.Codec().MimeType)
	log.Info("remote track")

	if track.Kind() == webrtc.RTPCodecTypeAudio {
		meter, err := audio.NewLevelMeter()
		if err == nil {
			r.meter.Store(meter)
			go func() {
				if err := meter.Watch(track); err != nil {
					log.Debug("remote track ended", "error", err)
				}
			}()
			return
		}
		log.Warn("level meter unavailable", "error", err)
	}

	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				log.Debug("remote track ended", "error", err)
				return
			}
		}
	}()
}

func (r *remoteMedia) level() float64 {
	if m := r.meter.Load(); m != nil {
		return m.Level()
	}
	return audio.SilenceDBFS
}

func runCall(ctx context.Context, cfg *config.Config, room string) error {
	remote := &remoteMedia{}
	call := client.New(client.Options{
		RelayURL:           cfg.RelayURL,
		ICEServers:         cfg.ICEServers(),
		Camera:             cameraDevice(cfg),
		Display:            displayDevice(cfg),
		NegotiationTimeout: cfg.NegotiationTimeout,
		OnRemoteTrack:      remote.onTrack,
	})

	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	if err := call.JoinRoom(joinCtx, room); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	model, err := ui.RunCall(call, call.RoomID(), remote.level)
	if lerr := call.LeaveRoom(); lerr != nil {
		slog.Debug("leave room", "error", lerr)
	}

	fmt.Println()
	ui.RenderSummary(call.Summary())

	if err != nil {
		return err
	}
	switch callErr := model.Err(); {
	case callErr == nil:
		ui.PrintSuccess("Left the room")
	case errors.Is(callErr, peer.ErrPeerLeft):
		ui.PrintInfo("The other participant left")
	default:
		return fmt.Errorf("call ended: %w", callErr)
	}
	return nil
}
