// Package cli implements fmctl, the command-line client for fmsessiond.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const defaultAddr = "http://localhost:8080"

var (
	addr    string
	apiKey  string
	jsonOut bool

	client *Client
)

var rootCmd = &cobra.Command{
	Use:   "fmctl",
	Short: "Control a fmsessiond player and streamer",
	Long: `fmctl drives the station player and simulcast streamer of a running
fmsessiond over its HTTP API.

The address and API key default to $FMSESSION_ADDR and $FMSESSION_API_KEY.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		client = NewClient(addr, apiKey)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&addr, "addr", "a", envOr("FMSESSION_ADDR", defaultAddr), "daemon address")
	rootCmd.PersistentFlags().StringVarP(&apiKey, "api-key", "k", os.Getenv("FMSESSION_API_KEY"), "API key")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// printJSON writes v indented to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// report prints v as JSON with --json, or msg otherwise.
func report(cmd *cobra.Command, v interface{}, msg string) error {
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), msg)
	return err
}
