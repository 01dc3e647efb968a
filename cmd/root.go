package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sander-remitly/packer/internal/packer"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	port    int
	dbPath  string
	verbose bool
	workers int
	scale   int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "packer",
	Short: "Packer - choose the most valuable items that fit a package",
	Long: `Packer reads package descriptions, one per line:

  81 : (1,53.38,€45) (2,88.62,€98) (3,78.48,€3)

and for each package picks the items with the highest total cost whose
total weight does not exceed the capacity.

It runs as a command line tool (pack) or as an API and web UI (serve, api).`,
	// Execute prints the error itself
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 8080, "Server port")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "./data/packer.db", "Database file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Packages solved concurrently")
	rootCmd.PersistentFlags().IntVar(&scale, "scale", packer.DefaultScale, "Integer units per unit of weight and cost")
}

// packerOptions returns the options shared by every command
func packerOptions() []packer.Option {
	return []packer.Option{
		packer.WithWorkers(workers),
		packer.WithScale(scale),
	}
}
