package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := deps.Build(deps.Config, newConsoleSink(deps.Out, deps.ErrOut, false))
			if err != nil {
				return err
			}
			defer services.Close()

			devices, err := services.Backend.ListAudioDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}
			if len(devices) == 0 {
				fmt.Fprintln(deps.Out, "No capture devices found.")
				return nil
			}

			w := tabwriter.NewWriter(deps.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, device := range devices {
				fmt.Fprintf(w, "%s\t%s\n", device.ID, device.Name)
			}
			return w.Flush()
		},
	}
}
