package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"workx/internal/bootstrap"
)

func NewHealthCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the transcription service",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := deps.Build(deps.Config, newConsoleSink(deps.Out, deps.ErrOut, false))
			if err != nil {
				return err
			}
			defer services.Close()

			err = services.Health(cmd.Context())
			switch {
			case errors.Is(err, bootstrap.ErrNoHealthCheck):
				fmt.Fprintln(deps.Out, "native backend: nothing to check")
				return nil
			case err != nil:
				return fmt.Errorf("service unhealthy: %w", err)
			}
			fmt.Fprintln(deps.Out, "service healthy")
			return nil
		},
	}
}
