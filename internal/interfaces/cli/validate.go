package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/infrastructure/templatefile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type ValidateCmd struct {
	templatePath string
	logger       *zap.Logger
}

func NewValidateCmd(logger *zap.Logger) *cobra.Command {
	vc := &ValidateCmd{logger: logger}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a template file for structural errors",
		Args:  cobra.NoArgs,
		RunE:  vc.run,
	}

	cmd.Flags().StringVarP(&vc.templatePath, "template", "t", "", "Path to the template YAML file")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func (vc *ValidateCmd) run(cmd *cobra.Command, _ []string) error {
	tpl, err := templatefile.Load(vc.templatePath)
	if err != nil {
		return err
	}

	vt, err := dre.Validate(tpl)
	if err != nil {
		return describeValidation(err)
	}
	order, err := dre.Resolve(vt)
	if err != nil {
		return describeValidation(err)
	}

	vc.logger.Debug("Template validated",
		zap.String("path", vc.templatePath),
		zap.Int("items", vt.Len()),
	)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Template %q is valid\n", vt.Name())
	fmt.Fprintf(out, "Items: %d\n", vt.Len())
	fmt.Fprintf(out, "Accounts: %s\n", strings.Join(dre.AccountsOf(vt.Items()), ", "))
	fmt.Fprintf(out, "Evaluation order: %s\n", strings.Join(order, " -> "))
	return nil
}

// describeValidation prefixes the API error code and the unknown references
func describeValidation(err error) error {
	var verr *dre.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	code := verr.ErrorCode()
	if len(verr.References) > 0 {
		code += fmt.Sprintf(" (unknown references: %s)", strings.Join(verr.References, ", "))
	}
	return fmt.Errorf("invalid template: %s: %w", code, err)
}
