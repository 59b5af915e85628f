// Command fmctl is the command-line client for fmsessiond.
package main

import "github.com/feedfm/fmsession/internal/cli"

func main() {
	cli.Execute()
}
