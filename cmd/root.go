package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"example.com/meetease/internal/config"
	"example.com/meetease/internal/ui"
)

// Version is set at build time.
var Version = "dev"

// Flags shared by every command
var (
	relayURL           string
	webURL             string
	stunServer         string
	turnServer         string
	turnUser           string
	turnPass           string
	cameraPath         string
	microphone         string
	screenPath         string
	negotiationTimeout string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "meet",
	Short:   "One-to-one video calls over WebRTC from the terminal",
	Long:    `meet joins a two-person video room through a signaling relay and streams camera, microphone and screen directly to the other participant over WebRTC. Rooms are shared by id or link.`,
	Version: Version,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&relayURL, "relay", "", "Signaling relay websocket base (env MEET_RELAY_URL)")
	flags.StringVar(&webURL, "web", "", "Base URL for room links (env MEET_WEB_URL)")
	flags.StringVar(&stunServer, "stun", "", "STUN server URL (env STUN_SERVER)")
	flags.StringVar(&turnServer, "turn", "", "TURN server host or URL (env TURN_SERVER)")
	flags.StringVar(&turnUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	flags.StringVar(&turnPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	flags.StringVar(&cameraPath, "camera", "", "IVF (VP8) file to send as camera; empty sends a test pattern (env MEET_CAMERA)")
	flags.StringVar(&microphone, "mic", "", `Ogg (Opus) file to send as microphone, or "tone"; empty sends silence (env MEET_MICROPHONE)`)
	flags.StringVar(&screenPath, "screen", "", "IVF (VP8) file to send when sharing the screen (env MEET_SCREEN)")
	flags.StringVar(&negotiationTimeout, "timeout", "", "Negotiation timeout, e.g. 30s; 0 disables (env MEET_NEGOTIATION_TIMEOUT)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{
		RelayURL:           relayURL,
		WebURL:             webURL,
		STUNServer:         stunServer,
		TURNServer:         turnServer,
		TURNUser:           turnUser,
		TURNPass:           turnPass,
		Camera:             cameraPath,
		Microphone:         microphone,
		Screen:             screenPath,
		NegotiationTimeout: negotiationTimeout,
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
