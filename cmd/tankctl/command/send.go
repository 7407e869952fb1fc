package command

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"watertank/pkg/client"
	"watertank/pkg/protocol"
)

var (
	outflowRaw  int32
	setpointRaw int32
	jsonOutput  bool
)

// sendCmd sends one holding-register frame
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one outflow command and print the tank state",
	Long: `Send one holding-register request and print the input-register answer.
The answer reflects the latest tick, the command itself is applied on a later tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.Dial(serverAddr, timeout)
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.SendOutflow(outflowRaw, setpointRaw)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp, jsonOutput)
	},
}

func printResponse(w io.Writer, resp protocol.Response, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(resp)
	}
	_, err := fmt.Fprintf(w, "level=%5d (%5.1f%%)  inflow=%5d (%5.1f%%)\n",
		resp.TankLevel, percent(resp.TankLevel),
		resp.TankInflow, percent(resp.TankInflow),
	)
	return err
}

func percent(w uint16) float64 {
	return protocol.FromWire(w, 100)
}

// addRequestFlags binds the request flags shared by send and watch
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().Int32Var(&outflowRaw, "x", protocol.WireMax/2, "outflow register (0 = closed, 65535 = max outflow)")
	cmd.Flags().Int32Var(&setpointRaw, "y", 0, "setpoint register")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the raw JSON response")
}

func init() {
	addRequestFlags(sendCmd)
}
