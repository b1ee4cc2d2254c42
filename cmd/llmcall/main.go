// Package main provides the llmcall CLI, a thin shell around the client
// library for one-shot completions against a configured provider.
//
// # Basic Usage
//
// Single completion:
//
//	llmcall chat --config llmcomms.yaml "Summarize the attached notes"
//
// Streaming, with an explicit provider and model:
//
//	llmcall chat --provider ollama --model llama3 --stream "hi"
//
// JSON-object mode:
//
//	llmcall chat --json '{"task": "extract entities", "text": "..."}'
//
// # Environment Variables
//
//   - LLMCOMMS_CONFIG: Path to configuration file (default: llmcomms.yaml)
//   - OPENAI_API_KEY / AZURE_OPENAI_API_KEY: referenced from the config file
//     via ${VAR} expansion
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "llmcall",
		Short:         "One-shot LLM completions from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newChatCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
