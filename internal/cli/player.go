package cli

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/feedfm/fmsession/internal/models"
)

var stateCmd = &cobra.Command{
	Use:     "state",
	Aliases: []string{"status"},
	Short:   "Show player and streamer state",
	Args:    cobra.NoArgs,
	RunE:    runState,
}

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List the stations the player can tune to",
	Args:  cobra.NoArgs,
	RunE:  runStations,
}

var playerCmds = []*cobra.Command{
	simplePlayerCmd("play", "Start or resume playback", "▶ Playing"),
	simplePlayerCmd("pause", "Pause playback", "⏸ Paused"),
	simplePlayerCmd("stop", "Stop playback", "⏹ Stopped"),
	simplePlayerCmd("skip", "Skip the current song", "⏭ Skip requested"),
}

var volumeCmd = &cobra.Command{
	Use:   "volume <0.0-1.0>",
	Short: "Set the player volume",
	Args:  cobra.ExactArgs(1),
	RunE:  runVolume,
}

var stationCmd = &cobra.Command{
	Use:   "station <id>",
	Short: "Tune to a station",
	Args:  cobra.ExactArgs(1),
	RunE:  runStation,
}

var newClientID bool

var clientIDCmd = &cobra.Command{
	Use:   "client-id [id]",
	Short: "Restore a client id, or create a new one with --new",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClientID,
}

var seekCmd = &cobra.Command{
	Use:   "seek <seconds>",
	Short: "Seek within the current station",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeek,
}

var reinitCmd = &cobra.Command{
	Use:   "reinitialize",
	Short: "Discard the player and start a new engine session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var s models.Session
		if err := client.Do(cmd.Context(), http.MethodPost, "/api/player/reinitialize", nil, &s); err != nil {
			return err
		}
		return report(cmd, s, "Player reinitialized")
	},
}

func init() {
	clientIDCmd.Flags().BoolVar(&newClientID, "new", false, "ask the engine for a new client id")

	rootCmd.AddCommand(stateCmd, stationsCmd, volumeCmd, stationCmd, clientIDCmd, seekCmd, reinitCmd)
	rootCmd.AddCommand(playerCmds...)
}

func simplePlayerCmd(name, short, done string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var s models.Session
			if err := client.Do(cmd.Context(), http.MethodPost, "/api/player/"+name, nil, &s); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return report(cmd, s, done)
		},
	}
}

func runState(cmd *cobra.Command, args []string) error {
	var state struct {
		Player   *models.Session         `json:"player"`
		Streamer *models.StreamerSession `json:"streamer"`
	}
	if err := client.Do(cmd.Context(), http.MethodGet, "/api", nil, &state); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), state)
	}
	writeState(cmd.OutOrStdout(), state.Player, state.Streamer)
	return nil
}

// writeState prints a short human summary of both sessions.
func writeState(w io.Writer, p *models.Session, s *models.StreamerSession) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if p == nil {
		fmt.Fprintln(tw, "Player:\tnot initialized")
	} else {
		fmt.Fprintf(tw, "Player:\t%s (%s)\n", p.State, p.Available)
		if p.ActiveStation != nil {
			fmt.Fprintf(tw, "Station:\t%s [%d]\n", p.ActiveStation.Name, p.ActiveStation.ID)
		}
		if p.CurrentPlay != nil {
			fmt.Fprintf(tw, "Playing:\t%s\n", describePlay(p.CurrentPlay, p.ElapsedSeconds))
		}
		fmt.Fprintf(tw, "Volume:\t%.2f\n", p.Volume)
		if p.ClientID != "" {
			fmt.Fprintf(tw, "Client:\t%s\n", p.ClientID)
		}
	}
	if s != nil {
		fmt.Fprintf(tw, "Streamer:\t%s\n", s.State)
		if s.Intent.Token != "" {
			fmt.Fprintf(tw, "Stream:\t%s\n", s.Intent.Token)
		}
		if s.CurrentPlay != nil {
			fmt.Fprintf(tw, "Streaming:\t%s\n", describePlay(s.CurrentPlay, s.ElapsedSeconds))
		}
	}
	_ = tw.Flush()
}

func describePlay(p *models.Play, elapsed float64) string {
	var b strings.Builder
	b.WriteString(p.Title)
	if p.Artist != "" {
		b.WriteString(" - " + p.Artist)
	}
	if p.DurationSeconds > 0 {
		fmt.Fprintf(&b, " (%s/%s)", clock(elapsed), clock(p.DurationSeconds))
	}
	return b.String()
}

func clock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func runStations(cmd *cobra.Command, args []string) error {
	var body struct {
		Stations      []models.Station `json:"stations"`
		ActiveStation *models.Station  `json:"active_station"`
	}
	if err := client.Do(cmd.Context(), http.MethodGet, "/api/player/stations", nil, &body); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), body)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\t")
	for _, st := range body.Stations {
		mark := ""
		if body.ActiveStation != nil && body.ActiveStation.ID == st.ID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", st.ID, st.Name, mark)
	}
	return tw.Flush()
}

func runVolume(cmd *cobra.Command, args []string) error {
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid volume %q", args[0])
	}
	var s models.Session
	if err := client.Do(cmd.Context(), http.MethodPatch, "/api/player/volume", models.VolumeRequest{Volume: &v}, &s); err != nil {
		return err
	}
	return report(cmd, s, fmt.Sprintf("Volume set to %.2f", s.Volume))
}

func runStation(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid station id %q", args[0])
	}
	var s models.Session
	if err := client.Do(cmd.Context(), http.MethodPut, "/api/player/station", models.StationRequest{ID: &id}, &s); err != nil {
		return err
	}
	return report(cmd, s, fmt.Sprintf("Station %d requested", id))
}

func runClientID(cmd *cobra.Command, args []string) error {
	var s models.Session
	switch {
	case newClientID:
		if err := client.Do(cmd.Context(), http.MethodPost, "/api/player/client_id/new", nil, &s); err != nil {
			return err
		}
		return report(cmd, s, "New client id requested")
	case len(args) == 1:
		if err := client.Do(cmd.Context(), http.MethodPost, "/api/player/client_id", models.ClientIDRequest{ClientID: args[0]}, &s); err != nil {
			return err
		}
		return report(cmd, s, "Client id "+args[0]+" requested")
	default:
		var p models.Session
		if err := client.Do(cmd.Context(), http.MethodGet, "/api/player", nil, &p); err != nil {
			return err
		}
		return report(cmd, map[string]string{"client_id": p.ClientID}, p.ClientID)
	}
}

func runSeek(cmd *cobra.Command, args []string) error {
	secs, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid seconds %q", args[0])
	}
	var s models.Session
	if err := client.Do(cmd.Context(), http.MethodPost, "/api/player/seek", models.SeekRequest{Seconds: secs}, &s); err != nil {
		return err
	}
	return report(cmd, s, fmt.Sprintf("Seek by %gs requested", secs))
}
