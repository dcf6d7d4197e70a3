package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one clip",
		Long:  "Record a single fixed-length clip from the selected device and wait until it is saved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := startServices(ctx, deps, newConsoleSink(deps.Out, deps.ErrOut, false), device)
			if err != nil {
				return err
			}
			defer services.Close()

			if err := services.Coordinator.StartFixedRecording(ctx); err != nil {
				return err
			}
			session, err := waitIdle(ctx, services)
			if err != nil {
				return err
			}
			fmt.Fprintf(deps.Out, "saved %s\n", session.LastArtifact)
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Capture device id (defaults to the first device)")
	return cmd
}

func NewContinuousCmd(deps *Dependencies) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "continuous",
		Short: "Record clips back to back until interrupted",
		Long:  "Record clips continuously. Ctrl+C stops after the clip in progress and prints the number of files generated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := startServices(ctx, deps, newConsoleSink(deps.Out, deps.ErrOut, true), device)
			if err != nil {
				return err
			}
			defer services.Close()

			if err := services.Coordinator.StartContinuousRecording(ctx); err != nil {
				return err
			}

			interrupted, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			session, err := waitIdle(interrupted, services)
			if interrupted.Err() == nil || ctx.Err() != nil {
				// the backend ended the run, or the command itself was cancelled
				if err != nil {
					return err
				}
				fmt.Fprintf(deps.Out, "stopped after %d files\n", session.FilesGenerated)
				return nil
			}

			if err := services.Coordinator.StopContinuousRecording(ctx); err != nil {
				return err
			}
			session, err = waitIdle(ctx, services)
			if err != nil {
				return err
			}
			fmt.Fprintf(deps.Out, "stopped after %d files\n", session.FilesGenerated)
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Capture device id (defaults to the first device)")
	return cmd
}
