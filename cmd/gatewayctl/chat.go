package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/storyverse/ai-gateway/services/gateway"
	"github.com/storyverse/ai-gateway/services/providers"
)

func newChatCmd(rt *runtime) *cobra.Command {
	var (
		providerName string
		className    string
		maxTokens    int
		system       string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message through the gateway or to a named provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: rt.withRuntime(func(cmd *cobra.Command, args []string) error {
			class, err := providers.ParseRequestClass(className)
			if err != nil {
				return err
			}

			req := providers.ChatRequest{
				SystemPrompt: system,
				UserMessage:  strings.Join(args, " "),
				MaxTokens:    maxTokens,
				Class:        class,
			}

			var outcome gateway.Outcome
			if providerName != "" {
				outcome, err = rt.gateway.ChatWithProvider(cmd.Context(), providerName, req)
			} else {
				outcome, err = rt.gateway.Chat(cmd.Context(), req)
			}
			if err != nil {
				var exhausted *gateway.ExhaustedError
				if errors.As(err, &exhausted) && len(exhausted.Attempted) > 0 {
					return fmt.Errorf("no provider answered (tried %s): %w",
						strings.Join(exhausted.Attempted, ", "), gateway.ErrAllProvidersExhausted)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, color.CyanString("[%s]", outcome.Provider))
			fmt.Fprintln(out, outcome.Text)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "send to this provider only, bypassing fallback")
	cmd.Flags().StringVarP(&className, "class", "c", string(providers.ClassStandard), "request class (standard or adult)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", providers.DefaultMaxTokens, "maximum tokens to generate")
	cmd.Flags().StringVar(&system, "system", "You are a helpful creative writing assistant.", "system prompt")
	return cmd
}
