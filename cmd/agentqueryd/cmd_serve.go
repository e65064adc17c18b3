package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/wepress/agentquery"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long:  `Start the agent query runtime as an HTTP server with SSE streaming.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := agentquery.LoadConfig(configPath)
		if err != nil {
			log.Printf("Error loading config: %v", err)
			os.Exit(1)
		}
		if serveHost != "" {
			cfg.Host = serveHost
		}
		if servePort != 0 {
			cfg.Port = servePort
		}

		srv := agentquery.New(agentquery.WithConfig(cfg))
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
}
