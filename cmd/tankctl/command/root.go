package command

// root.go defines the root command for tankctl and its global flags.

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverAddr string        // TCP address of the tank server
	timeout    time.Duration // dial and round trip limit
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tankctl",
	Short: "tankctl - controller for the water tank simulator",
	Long: `tankctl speaks the tank's register protocol over TCP. It can:
- send a single outflow command and print the tank's answer
- keep commanding the tank and watch the level change

Outflow (x) and setpoint (y) are raw register values in [0, 65535].
Use "tankctl command -h" to see the flags of each command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "127.0.0.1:9977", "tank server TCP address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "dial and request timeout")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(watchCmd)
}
