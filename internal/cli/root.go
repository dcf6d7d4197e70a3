// Package cli implements workxctl, a terminal front end over the same coordinator the desktop app uses.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"workx/internal/bootstrap"
	"workx/internal/config"
	"workx/internal/domain"
	"workx/internal/ports"
)

// Dependencies are shared by every command.
type Dependencies struct {
	Config config.Config
	Out    io.Writer
	ErrOut io.Writer
	// Build assembles services around a sink; tests swap it.
	Build func(cfg config.Config, sink ports.EventSink) (*bootstrap.Services, error)
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps.Build == nil {
		deps.Build = bootstrap.BuildWith
	}

	rootCmd := &cobra.Command{
		Use:           "workxctl",
		Short:         "Record audio clips and follow live transcripts",
		Long:          "workxctl drives the recording backend from a terminal: list devices, record fixed clips or continuous sessions, and print the transcripts they produce.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(deps.Out)
	rootCmd.SetErr(deps.ErrOut)

	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewContinuousCmd(deps))
	rootCmd.AddCommand(NewTranscriptsCmd(deps))
	rootCmd.AddCommand(NewWatchCmd(deps))
	rootCmd.AddCommand(NewHealthCmd(deps))

	return rootCmd
}

// startServices builds and starts the runtime graph, selecting device when one is given.
func startServices(ctx context.Context, deps *Dependencies, sink ports.EventSink, device string) (*bootstrap.Services, error) {
	services, err := deps.Build(deps.Config, sink)
	if err != nil {
		return nil, err
	}
	if err := services.Start(ctx); err != nil {
		_ = services.Close()
		return nil, err
	}
	if device = strings.TrimSpace(device); device != "" {
		if err := services.Coordinator.SelectDevice(device); err != nil {
			_ = services.Close()
			return nil, fmt.Errorf("select device %q: %w", device, err)
		}
	}
	return services, nil
}

// waitIdle polls until the session settles back to idle and returns its final state.
func waitIdle(ctx context.Context, services *bootstrap.Services) (domain.RecordingSession, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		session := services.Coordinator.Snapshot().Session
		if session.Idle() {
			if session.LastError != "" {
				return session, errors.New(session.LastError)
			}
			return session, nil
		}
		select {
		case <-ctx.Done():
			return session, ctx.Err()
		case <-ticker.C:
		}
	}
}
