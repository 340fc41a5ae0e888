// Smartap-hubfix is a field maintenance utility for Smartap hubs.
//
// It applies a verified binary patch to the cloudd daemon on a hub over
// the network, keeps a local backup of the original binary, and can
// restore that backup later. Every step is gated on checksum
// verification; the tool never writes an unverified binary to a hub.
//
// Usage:
//
//	smartap-hubfix [command] [flags]
//
// See 'smartap-hubfix --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/smartap-hubfix/internal/patcher"
	"github.com/muurk/smartap-hubfix/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(patcher.ExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "smartap-hubfix",
	Short: "Smartap Hub Binary Patch Utility",
	Long: `A standalone utility for patching the cloudd daemon on Smartap hubs.

Fetches the installed binary from the hub, verifies it is an exact known
version, applies an embedded binary delta, verifies the result, and
transfers it back atomically. A local backup of the original binary is
always written first and can be restored with the undo command.

Failures map to distinct exit codes (10-17) so scripted invocations can
branch on the outcome.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smartap-hubfix %s (commit: %s)\n", version.Version, version.Commit)
	},
}
