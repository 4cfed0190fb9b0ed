package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/meetease/client"
	"example.com/meetease/internal/ui"
)

var noJoin bool

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new room, print its link and join it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		roomID := client.NewRoomID()
		fmt.Println(ui.RoomInfoView(roomID, cfg.RoomLink(roomID)))
		if noJoin {
			return nil
		}
		return runCall(cmd.Context(), cfg, roomID)
	},
}

func init() {
	createCmd.Flags().BoolVar(&noJoin, "no-join", false, "Only print the room link")
	rootCmd.AddCommand(createCmd)
}
