package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the larkmcp application
var rootCmd = &cobra.Command{
	Use:   "larkmcp",
	Short: "MCP server exposing the Lark/Feishu API as tools",
	Long: `larkmcp adapts the Lark/Feishu Open Platform REST API into tools
callable by AI assistants over the Model Context Protocol.

It manages tenant and user access tokens in process memory, refreshing
them from the identity endpoint before they expire.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "larkmcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
