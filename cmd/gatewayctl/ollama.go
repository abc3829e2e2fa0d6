package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/storyverse/ai-gateway/services/providers"
)

// modelPuller is implemented by providers that can download their model
type modelPuller interface {
	PullModel(ctx context.Context, progress func(status string, completed, total int64)) error
}

func newOllamaCmd(rt *runtime) *cobra.Command {
	var providerName string

	cmd := &cobra.Command{
		Use:   "ollama",
		Short: "Manage models on a local Ollama daemon",
	}
	cmd.PersistentFlags().StringVarP(&providerName, "provider", "p", "ollama", "registry name of the ollama provider")

	models := &cobra.Command{
		Use:   "models",
		Short: "List models pulled into the daemon",
		Args:  cobra.NoArgs,
		RunE: rt.withRuntime(func(cmd *cobra.Command, _ []string) error {
			p, err := rt.registry.Get(providerName)
			if err != nil {
				return err
			}
			prober, ok := p.(providers.ServiceProber)
			if !ok {
				return fmt.Errorf("provider %q cannot list models", providerName)
			}

			names, err := prober.AvailableModels(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "no models pulled")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		}),
	}

	pull := &cobra.Command{
		Use:   "pull",
		Short: "Pull the provider's configured model",
		Args:  cobra.NoArgs,
		RunE: rt.withRuntime(func(cmd *cobra.Command, _ []string) error {
			p, err := rt.registry.Get(providerName)
			if err != nil {
				return err
			}
			puller, ok := p.(modelPuller)
			if !ok {
				return fmt.Errorf("provider %q cannot pull models", providerName)
			}

			out := cmd.OutOrStdout()
			last := ""
			err = puller.PullModel(cmd.Context(), func(status string, completed, total int64) {
				line := status
				if total > 0 {
					line = fmt.Sprintf("%s %d%%", status, completed*100/total)
				}
				if line != last {
					fmt.Fprintln(out, line)
				}
				last = line
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "done")
			return nil
		}),
	}

	cmd.AddCommand(models, pull)
	return cmd
}
