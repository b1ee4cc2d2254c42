package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/llmcomms/pkg/llm"
	"github.com/haasonsaas/llmcomms/pkg/llm/config"
)

type chatFlags struct {
	configPath  string
	provider    string
	model       string
	system      string
	stream      bool
	jsonMode    bool
	noCache     bool
	temperature float32
	maxTokens   int
}

func newChatCommand() *cobra.Command {
	flags := &chatFlags{}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send one prompt and print the completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), flags, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath(), "configuration file")
	cmd.Flags().StringVarP(&flags.provider, "provider", "p", "", "provider name from the config (default: default_provider)")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "model id (default: provider's default_model)")
	cmd.Flags().StringVar(&flags.system, "system", "", "system prompt")
	cmd.Flags().BoolVar(&flags.stream, "stream", false, "stream the completion as it is generated")
	cmd.Flags().BoolVar(&flags.jsonMode, "json", false, "request a JSON object response")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "bypass the response cache")
	cmd.Flags().Float32VarP(&flags.temperature, "temperature", "t", -1, "sampling temperature (0.0-2.0)")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "maximum output tokens")

	return cmd
}

func defaultConfigPath() string {
	if path := os.Getenv("LLMCOMMS_CONFIG"); path != "" {
		return path
	}
	return "llmcomms.yaml"
}

func buildRequest(flags *chatFlags, prompt string) *llm.Request {
	var messages []llm.Message
	if flags.system != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: flags.system})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	req := &llm.Request{
		Messages:        messages,
		MaxOutputTokens: flags.maxTokens,
	}
	if flags.temperature >= 0 {
		req.Temperature = llm.Float32(flags.temperature)
	}
	if flags.jsonMode {
		req.ResponseFormat = llm.FormatJSONObject
	}
	if flags.noCache {
		req.ProviderHints = map[string]any{llm.HintNoCache: true}
	}
	return req
}

func runChat(ctx context.Context, flags *chatFlags, prompt string) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	shutdownTracing, err := config.SetupTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	c, err := config.BuildClient(cfg, flags.provider, flags.model)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := buildRequest(flags, prompt)
	if flags.stream {
		return streamChat(ctx, c, req)
	}

	resp, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(resp.Output.Content)
	for _, call := range resp.ToolCalls {
		fmt.Fprintf(os.Stderr, "tool call: %s(%s)\n", call.Name, call.Arguments)
	}
	fmt.Fprintf(os.Stderr, "tokens: %d prompt, %d completion, %d total\n",
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	return nil
}

type streamer interface {
	Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error)
}

func streamChat(ctx context.Context, c streamer, req *llm.Request) error {
	events, err := c.Stream(ctx, req)
	if err != nil {
		return err
	}

	for ev := range events {
		switch ev.Kind {
		case llm.EventDelta:
			fmt.Print(ev.TextDelta)
		case llm.EventReasoning:
			fmt.Fprint(os.Stderr, ev.Reasoning)
		case llm.EventToolCall:
			if ev.ToolCall != nil {
				args, _ := json.Marshal(json.RawMessage(ev.ToolCall.Arguments))
				fmt.Fprintf(os.Stderr, "\ntool call: %s(%s)\n", ev.ToolCall.Name, args)
			}
		case llm.EventComplete:
			fmt.Println()
			if ev.Usage != nil && !ev.Usage.IsZero() {
				fmt.Fprintf(os.Stderr, "tokens: %d prompt, %d completion, %d total\n",
					ev.Usage.PromptTokens, ev.Usage.CompletionTokens, ev.Usage.TotalTokens)
			}
		case llm.EventError:
			return ev.Err
		}
	}
	return nil
}
