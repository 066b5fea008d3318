package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/erp/dre/internal/infrastructure/csvimport"
	"github.com/erp/dre/internal/infrastructure/fixtures"
	"github.com/erp/dre/internal/infrastructure/templatefile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type SeedCmd struct {
	count        int
	seed         uint64
	from         string
	to           string
	units        []string
	inactivePct  int
	outputPath   string
	templatePath string
	logger       *zap.Logger
}

func NewSeedCmd(logger *zap.Logger) *cobra.Command {
	sc := &SeedCmd{logger: logger}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a reproducible fake ledger CSV",
		Long: "Write a reproducible fake ledger CSV whose accounts match the standard template.\n" +
			"The same --seed always produces the same ledger.",
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().IntVarP(&sc.count, "count", "n", 500, "Number of ledger records")
	cmd.Flags().Uint64Var(&sc.seed, "seed", 42, "Random seed")
	cmd.Flags().StringVar(&sc.from, "from", "", "First date of the ledger (default January 1st of this year)")
	cmd.Flags().StringVar(&sc.to, "to", "", "End date of the ledger, exclusive (default three months after --from)")
	cmd.Flags().StringSliceVar(&sc.units, "units", nil, "Business units to spread records over")
	cmd.Flags().IntVar(&sc.inactivePct, "inactive-pct", 0, "Percentage of records flagged inactive")
	cmd.Flags().StringVarP(&sc.outputPath, "output", "o", "", "Ledger CSV path (default stdout)")
	cmd.Flags().StringVar(&sc.templatePath, "template", "", "Also write the standard template YAML to this path")

	return cmd
}

func (sc *SeedCmd) run(cmd *cobra.Command, _ []string) error {
	if sc.count <= 0 {
		return fmt.Errorf("--count must be positive, got %d", sc.count)
	}
	if sc.inactivePct < 0 || sc.inactivePct > 100 {
		return fmt.Errorf("--inactive-pct must be between 0 and 100, got %d", sc.inactivePct)
	}

	opts := fixtures.LedgerOptions{
		Seed:        sc.seed,
		Count:       sc.count,
		Units:       sc.units,
		InactivePct: sc.inactivePct,
	}
	if sc.from != "" {
		start, err := csvimport.ParseDate(sc.from)
		if err != nil {
			return err
		}
		opts.Start = start
	}
	if sc.to != "" {
		end, err := csvimport.ParseDate(sc.to)
		if err != nil {
			return err
		}
		opts.End = end
	}

	records := fixtures.Ledger(opts)

	if err := sc.write(cmd, sc.outputPath, func(w io.Writer) error {
		return fixtures.WriteCSV(w, records)
	}); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}

	if sc.templatePath != "" {
		if err := sc.write(cmd, sc.templatePath, func(w io.Writer) error {
			return templatefile.Encode(w, fixtures.StandardTemplate())
		}); err != nil {
			return fmt.Errorf("failed to write template: %w", err)
		}
	}

	sc.logger.Info("Ledger seeded",
		zap.Int("records", len(records)),
		zap.Uint64("seed", sc.seed),
		zap.String("output", sc.outputPath),
	)
	return nil
}

// write sends the content to path, or to the command output when path is empty
func (sc *SeedCmd) write(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
