package command

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"watertank/pkg/client"
)

var (
	watchInterval time.Duration
	watchCount    int
)

// watchCmd keeps sending the same command and prints every answer
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Repeatedly command the tank and print its state",
	Long: `Send the outflow command every --interval and print each answer.
Runs until --count answers were printed or Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := client.Dial(serverAddr, timeout)
		if err != nil {
			return err
		}
		defer c.Close()

		return watch(ctx, c, cmd)
	},
}

func watch(ctx context.Context, c *client.Client, cmd *cobra.Command) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for n := 0; watchCount <= 0 || n < watchCount; n++ {
		resp, err := c.SendOutflow(outflowRaw, setpointRaw)
		if err != nil {
			return err
		}
		if err := printResponse(cmd.OutOrStdout(), resp, jsonOutput); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			stats := c.Stats()
			fmt.Fprintf(cmd.ErrOrStderr(), "sent %d requests\n", stats.RequestsSent)
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func init() {
	addRequestFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 300*time.Millisecond, "time between requests")
	watchCmd.Flags().IntVar(&watchCount, "count", 0, "stop after this many answers (0 = forever)")
}
