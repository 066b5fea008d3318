package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/infrastructure/csvimport"
	"github.com/erp/dre/internal/infrastructure/templatefile"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Output formats of the generate command
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

type GenerateCmd struct {
	templatePath    string
	ledgerPath      string
	from            string
	to              string
	compareFrom     string
	compareTo       string
	units           []string
	costCenters     []string
	includeInactive bool
	excludeZero     bool
	minimumAmount   string
	precision       int32
	currency        string
	locale          string
	output          string
	timeout         time.Duration
	logger          *zap.Logger
}

func NewGenerateCmd(logger *zap.Logger) *cobra.Command {
	gc := &GenerateCmd{logger: logger}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an income statement from a template and a ledger CSV",
		Long: "Generate an income statement from a template and a ledger CSV.\n" +
			"Periods are half-open: --from is included and --to is excluded.",
		Args: cobra.NoArgs,
		RunE: gc.run,
	}

	// Define flags
	cmd.Flags().StringVarP(&gc.templatePath, "template", "t", "", "Path to the template YAML file")
	cmd.Flags().StringVarP(&gc.ledgerPath, "ledger", "l", "", "Path to the ledger CSV file")
	cmd.Flags().StringVar(&gc.from, "from", "", "Period start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&gc.to, "to", "", "Period end date, exclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&gc.compareFrom, "compare-from", "", "Comparison period start date")
	cmd.Flags().StringVar(&gc.compareTo, "compare-to", "", "Comparison period end date, exclusive")
	cmd.Flags().StringSliceVar(&gc.units, "units", nil, "Business units to include (default all)")
	cmd.Flags().StringSliceVar(&gc.costCenters, "cost-centers", nil, "Cost centers to include (default all)")
	cmd.Flags().BoolVar(&gc.includeInactive, "include-inactive", false, "Include records flagged inactive")
	cmd.Flags().BoolVar(&gc.excludeZero, "exclude-zero", false, "Hide rows whose value is zero")
	cmd.Flags().StringVar(&gc.minimumAmount, "min-amount", "", "Hide rows whose absolute value is below this amount")
	cmd.Flags().Int32Var(&gc.precision, "precision", 2, "Decimal places of amounts")
	cmd.Flags().StringVar(&gc.currency, "currency", "", "ISO currency code for table output")
	cmd.Flags().StringVar(&gc.locale, "locale", "en", "Locale for table output")
	cmd.Flags().StringVarP(&gc.output, "output", "o", OutputTable, "Output format: table or json")
	cmd.Flags().DurationVar(&gc.timeout, "timeout", 60*time.Second, "Maximum time spent reading the ledger")

	// Mark required flags
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("ledger")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (gc *GenerateCmd) run(cmd *cobra.Command, _ []string) error {
	if gc.output != OutputTable && gc.output != OutputJSON {
		return fmt.Errorf("unsupported output %q, expected %q or %q", gc.output, OutputTable, OutputJSON)
	}

	cfg, err := gc.configuration()
	if err != nil {
		return err
	}

	tpl, err := templatefile.Load(gc.templatePath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, gc.timeout)
	defer cancel()

	records, err := gc.readLedger(ctx, cmd)
	if err != nil {
		return err
	}

	result, err := dre.NewGenerator().Generate(tpl, cfg, records)
	if err != nil {
		return describeValidation(err)
	}

	for _, w := range result.Metadata.Warnings {
		gc.logger.Warn("Report warning",
			zap.String("kind", string(w.Kind)),
			zap.String("code", w.Code),
			zap.String("message", w.Message),
		)
	}

	if gc.output == OutputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	formatter, err := dre.NewFormatter(gc.locale, gc.currency, cfg.Precision)
	if err != nil {
		return err
	}
	return NewReporter(cmd.OutOrStdout(), formatter).Handle(result)
}

func (gc *GenerateCmd) configuration() (dre.ReportConfiguration, error) {
	period, err := parsePeriod(gc.from, gc.to)
	if err != nil {
		return dre.ReportConfiguration{}, err
	}

	cfg := dre.ReportConfiguration{
		Period:            period,
		Units:             gc.units,
		CostCenters:       gc.costCenters,
		IncludeInactive:   gc.includeInactive,
		ExcludeZeroValues: gc.excludeZero,
		Precision:         gc.precision,
		Currency:          gc.currency,
		GeneratedBy:       "dre-cli",
		DataSource:        gc.ledgerPath,
	}

	if gc.compareFrom != "" || gc.compareTo != "" {
		if gc.compareFrom == "" || gc.compareTo == "" {
			return dre.ReportConfiguration{}, fmt.Errorf("--compare-from and --compare-to must be given together")
		}
		cmp, err := parsePeriod(gc.compareFrom, gc.compareTo)
		if err != nil {
			return dre.ReportConfiguration{}, err
		}
		cfg.ComparisonPeriod = &cmp
	}

	if gc.minimumAmount != "" {
		amount, err := decimal.NewFromString(gc.minimumAmount)
		if err != nil {
			return dre.ReportConfiguration{}, fmt.Errorf("invalid --min-amount %q: %w", gc.minimumAmount, err)
		}
		cfg.MinimumAmount = amount
	}

	if err := cfg.Validate(); err != nil {
		return dre.ReportConfiguration{}, err
	}
	return cfg, nil
}

func (gc *GenerateCmd) readLedger(ctx context.Context, cmd *cobra.Command) ([]dre.AccountRecord, error) {
	f, err := os.Open(gc.ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	result, err := csvimport.NewLedgerImporter().Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", gc.ledgerPath, err)
	}
	if !result.IsValid() {
		for _, rowErr := range result.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), rowErr.Error())
		}
		return nil, fmt.Errorf("ledger %s has %d invalid rows", gc.ledgerPath, result.ErrorRows)
	}

	gc.logger.Debug("Ledger loaded",
		zap.String("path", gc.ledgerPath),
		zap.Int("records", len(result.Records)),
	)
	return result.Records, nil
}

func parsePeriod(from, to string) (dre.Period, error) {
	start, err := csvimport.ParseDate(from)
	if err != nil {
		return dre.Period{}, err
	}
	end, err := csvimport.ParseDate(to)
	if err != nil {
		return dre.Period{}, err
	}
	return dre.NewPeriod(start, end)
}
