package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/masaic-ai/open-responses-go/internal/config"
)

var configValidateCmd = &cobra.Command{
	Use:   "config-validate",
	Short: "Load configuration from the environment and report any problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			color.Red("configuration invalid: %v", err)
			return err
		}

		color.Green("configuration OK")
		fmt.Printf("  port:                   %s\n", cfg.Port)
		fmt.Printf("  max tool calls:         %d\n", cfg.MaxToolCalls)
		fmt.Printf("  max streaming timeout:  %s\n", cfg.MaxStreamingTimeout)
		fmt.Printf("  response store backend: %s\n", cfg.ResponseStoreBackend)
		fmt.Printf("  vector store backend:   %s\n", cfg.VectorStoreBackend)
		fmt.Printf("  provider keys present:  %d\n", len(cfg.ProviderAPIKeys))

		if len(cfg.ProviderAPIKeys) == 0 {
			color.Yellow("  no fallback provider API keys configured — every request must carry its own Authorization header")
		}
		if cfg.MCPServerConfigPath != "" {
			tools, err := cfg.LoadMCPTools()
			if err != nil {
				color.Red("  MCP server config: %v", err)
				return err
			}
			fmt.Printf("  MCP tools discovered:   %d\n", len(tools))
		}
		return nil
	},
}
