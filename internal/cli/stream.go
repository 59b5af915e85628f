package cli

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/feedfm/fmsession/internal/models"
)

var disconnectForce bool

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Control the simulcast streamer",
}

var streamConnectCmd = &cobra.Command{
	Use:   "connect [token]",
	Short: "Start streaming, binding token first if given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req models.ConnectRequest
		if len(args) == 1 {
			req.Token = args[0]
		}
		return streamPost(cmd, "/api/streamer/connect", req)
	},
}

var streamSwitchCmd = &cobra.Command{
	Use:   "switch <token>",
	Short: "Bind a different stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return streamPost(cmd, "/api/streamer/switch", models.SwitchRequest{Token: args[0]})
	},
}

var streamDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Stop streaming; --force also unbinds the stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return streamPost(cmd, "/api/streamer/disconnect", models.DisconnectRequest{Force: disconnectForce})
	},
}

var streamVolumeCmd = &cobra.Command{
	Use:   "volume <0.0-1.0>",
	Short: "Set the streamer volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid volume %q", args[0])
		}
		var s models.StreamerSession
		if err := client.Do(cmd.Context(), http.MethodPatch, "/api/streamer/volume", models.VolumeRequest{Volume: &v}, &s); err != nil {
			return err
		}
		return report(cmd, s, fmt.Sprintf("Streamer volume set to %.2f", s.Volume))
	},
}

func init() {
	streamDisconnectCmd.Flags().BoolVarP(&disconnectForce, "force", "f", false, "unbind the stream")

	streamCmd.AddCommand(streamConnectCmd, streamSwitchCmd, streamDisconnectCmd, streamVolumeCmd)
	rootCmd.AddCommand(streamCmd)
}

func streamPost(cmd *cobra.Command, path string, body interface{}) error {
	var s models.StreamerSession
	if err := client.Do(cmd.Context(), http.MethodPost, path, body, &s); err != nil {
		return err
	}
	msg := "Streamer " + string(s.State)
	if s.Intent.Token != "" {
		msg += " (" + s.Intent.Token + ")"
	}
	return report(cmd, s, msg)
}
