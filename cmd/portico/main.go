package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌─┐┬─┐┌┬┐┬┌─┐┌─┐
  ├─┘│ │├┬┘ │ ││  │ │
  ┴  └─┘┴└─ ┴ ┴└─┘└─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "portico",
		Short: "Server-driven portals for Go",
		Long: `Portico keeps the DOM on the server and relocates rendered
subtrees between host elements over a binary patch stream.

The CLI runs the demo server:

  • Dynamic portals rebuilt per relocation
  • Persistent portals that keep identity across moves
  • Live sessions over WebSocket with resume
  • Prometheus metrics endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Portico ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
