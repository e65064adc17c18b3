package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentqueryd",
	Short: "Agent query runtime - multi-round LLM orchestration with tools",
	Long: `agentqueryd runs the agent query runtime: it turns a single prompt
into a multi-round streamed conversation with an OpenAI-compatible
model endpoint, executing tool calls and tracking TODO tasks along
the way.

Run 'agentqueryd serve' to expose the runtime over HTTP, or
'agentqueryd query' for a one-shot query from the terminal.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
}
