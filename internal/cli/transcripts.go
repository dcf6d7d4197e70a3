package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"workx/internal/domain"
)

func NewTranscriptsCmd(deps *Dependencies) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "Print the labelled transcript log",
		RunE: func(cmd *cobra.Command, args []string) error {
			lang := domain.Language(strings.ToLower(language))
			if lang != domain.LanguageSource && lang != domain.LanguageTarget {
				return fmt.Errorf("unknown language %q, want source or target", language)
			}

			services, err := deps.Build(deps.Config, newConsoleSink(deps.Out, deps.ErrOut, false))
			if err != nil {
				return err
			}
			defer services.Close()

			result, err := services.Reconciler.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			for _, path := range result.Failed {
				fmt.Fprintf(deps.ErrOut, "could not read %s\n", path)
			}
			if text := services.Reconciler.Logs().For(lang); text != "" {
				fmt.Fprintln(deps.Out, text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", string(domain.LanguageSource), "Transcript stream: source or target")
	return cmd
}

func NewWatchCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow transcripts as they are written",
		Long:  "Poll the transcript directory and print new blocks as they appear, until Ctrl+C.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			services, err := startServices(ctx, deps, newConsoleSink(deps.Out, deps.ErrOut, true), "")
			if err != nil {
				return err
			}
			defer services.Close()

			<-ctx.Done()
			return nil
		},
	}
}
