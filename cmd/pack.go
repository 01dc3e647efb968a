package cmd

import (
	"fmt"
	"os"

	"github.com/sander-remitly/packer/internal/logger"
	"github.com/sander-remitly/packer/internal/models"
	"github.com/sander-remitly/packer/internal/packer"
	"github.com/sander-remitly/packer/internal/repo"
	"github.com/sander-remitly/packer/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var saveHistory bool

// packCmd represents the pack command
var packCmd = &cobra.Command{
	Use:   "pack FILE...",
	Short: "Solve every package in the given files",
	Long: `Read each file, solve every package in it and print one line per
package: the selected item indices separated by commas, or "-" when nothing
fits. The first malformed or invalid line fails the whole file.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runPack,
}

func init() {
	packCmd.Flags().BoolVar(&saveHistory, "history", false, "Record solved packages in the database")
	rootCmd.AddCommand(packCmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	// Results go to stdout, logs stay out of the way
	logger.Initialize(logger.WithVerbose(verbose), logger.WithOutput("stderr"))
	defer logger.Sync()

	if err := validation.CheckLimits(models.DefaultLimits(), scale); err != nil {
		return fmt.Errorf("invalid --scale: %w", err)
	}

	var repository *repo.Repository
	if saveHistory {
		var err error
		repository, err = openRepository(dbPath)
		if err != nil {
			return err
		}
		defer repository.Close()
	}

	p := packer.New(append(packerOptions(), packer.WithLogger(logger.Log))...)
	out := cmd.OutOrStdout()

	for _, path := range args {
		results, err := packPath(cmd, p, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		logger.Log.Debug("Packed file", zap.String("path", path), zap.Int("packages", len(results)))

		if len(results) > 0 {
			fmt.Fprintln(out, packer.Format(results))
		}

		if repository == nil {
			continue
		}
		for _, res := range results {
			if err := repository.SaveSolution(res.Package, res.Selected, res.TotalCost, res.TotalWeight); err != nil {
				return fmt.Errorf("failed to save solution: %w", err)
			}
		}
	}

	return nil
}

func packPath(cmd *cobra.Command, p *packer.Packer, path string) ([]packer.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.Pack(cmd.Context(), f)
}
