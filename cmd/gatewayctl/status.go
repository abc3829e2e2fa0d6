package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/storyverse/ai-gateway/services/providers"
)

func newStatusCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider availability, circuit state and the primary provider per class",
		Args:  cobra.NoArgs,
		RunE: rt.withRuntime(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%-12s %-10s %-8s %s\n", "PROVIDER", "AVAILABLE", "CIRCUIT", "COST/1K")
			for _, s := range rt.gateway.ProvidersStatus(ctx) {
				fmt.Fprintf(out, "%-12s %-10s %-8s $%.4f\n",
					s.Name, availableMark(s.Available), circuitLabel(s.CircuitOpen), s.CostPer1KTokens)
			}

			fmt.Fprintln(out)
			for _, class := range []providers.RequestClass{providers.ClassStandard, providers.ClassAdult} {
				fmt.Fprintf(out, "primary %-9s %s\n", string(class)+":", primaryLabel(rt.gateway.PrimaryProvider(ctx, class)))
			}
			return nil
		}),
	}
}

// Marks are padded before colouring so escape codes never shift columns.
func availableMark(ok bool) string {
	if ok {
		return color.GreenString("%-10s", "✓ yes")
	}
	return color.RedString("%-10s", "✗ no")
}

func circuitLabel(open bool) string {
	if open {
		return color.RedString("%-8s", "open")
	}
	return color.GreenString("%-8s", "closed")
}

func primaryLabel(name string) string {
	if name == "" {
		return color.YellowString("none")
	}
	return color.CyanString(name)
}
