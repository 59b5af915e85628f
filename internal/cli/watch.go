package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedfm/fmsession/internal/zeroconf"
)

var (
	watchTimestamp bool
	discoverWait   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow session notifications in real time",
	Long: `Print every notification from the player and the streamer as it
happens. The first line is a snapshot of both sessions.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find fmsessiond instances on the local network",
	Args:  cobra.NoArgs,
	RunE:  runDiscover,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchTimestamp, "timestamp", "t", false, "show timestamps")
	discoverCmd.Flags().DurationVarP(&discoverWait, "wait", "w", 3*time.Second, "how long to browse")

	rootCmd.AddCommand(watchCmd, discoverCmd)
}

// envelope is the subset of an SSE message fmctl prints.
type envelope struct {
	Source string          `json:"source"`
	Kind   string          `json:"kind"`
	Data   json.RawMessage `json:"data"`
	At     time.Time       `json:"at"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Handle Ctrl+C gracefully
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	return client.Subscribe(ctx, func(raw json.RawMessage) error {
		if jsonOut {
			_, err := fmt.Fprintln(out, string(raw))
			return err
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("bad event: %w", err)
		}
		return writeEnvelope(out, env)
	})
}

func writeEnvelope(w io.Writer, env envelope) error {
	prefix := ""
	if watchTimestamp && !env.At.IsZero() {
		prefix = env.At.Local().Format("15:04:05") + " "
	}
	if env.Kind == "" {
		_, err := fmt.Fprintf(w, "%s[%s]\n", prefix, env.Source)
		return err
	}
	data := string(env.Data)
	if data == "" || data == "{}" || data == "null" {
		_, err := fmt.Fprintf(w, "%s[%s] %s\n", prefix, env.Source, env.Kind)
		return err
	}
	_, err := fmt.Fprintf(w, "%s[%s] %s %s\n", prefix, env.Source, env.Kind, data)
	return err
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), discoverWait)
	defer cancel()

	found, err := zeroconf.Discover(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), found)
	}
	if len(found) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No instances found")
		return nil
	}
	for _, inst := range found {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", inst.Name, inst.URL())
	}
	return nil
}
