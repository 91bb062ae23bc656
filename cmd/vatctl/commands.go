package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Victor-armando18/service-vat/internal/bootstrap"
	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/functions"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
	"github.com/Victor-armando18/service-vat/internal/infrastructure"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
)

type calculateInput struct {
	User          *model.User        `json:"user"`
	Cart          model.CartSnapshot `json:"cart"`
	EffectiveDate string             `json:"effective_date,omitempty"`
}

func calculateCmd() *cobra.Command {
	var file, date string
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate VAT for a cart snapshot file",
		Example: `  vatctl calculate --file cart.json
  vatctl calculate --file cart.json --date 2020-06-01 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var in calculateInput
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("decoding %s: %w", file, err)
			}
			if date != "" {
				in.EffectiveDate = date
			}
			var effective time.Time
			if in.EffectiveDate != "" {
				if effective, err = region.ParseDate(in.EffectiveDate); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				res := app.Calculator.CalculateVAT(ctx, in.User, in.Cart, effective)
				if jsonOutput() {
					return printJSON(res)
				}
				printResult(res)
				if res.Status == domain.StatusError {
					return fmt.Errorf("calculation failed: %s", res.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with user, cart and optional effective_date")
	cmd.Flags().StringVar(&date, "date", "", "effective date YYYY-MM-DD (overrides the file)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func rulesCmd() *cobra.Command {
	rules := &cobra.Command{Use: "rules", Short: "Inspect and dry-run rules"}
	rules.AddCommand(rulesListCmd())
	rules.AddCommand(rulesValidateCmd())
	rules.AddCommand(rulesRunCmd())
	return rules
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [entry_point]",
		Short: "List the active rules of an entry point",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ep := domain.EntryPointCartCalculateVAT
			if len(args) == 1 {
				ep = args[0]
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				rules, err := app.Rules.ListRules(ctx, ep)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(rules)
				}
				printRules(rules)
				return nil
			})
		},
	}
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a rule pack file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pack, err := infrastructure.NewFileRuleLoader("").Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := pack.Validate(functions.Builtins(functions.Bindings{}), engine.DefaultSchemas()); err != nil {
				return err
			}
			fmt.Printf("rule pack %s: %d rules ok\n", pack.Version, len(pack.Rules))
			return nil
		},
	}
}

func rulesRunCmd() *cobra.Command {
	var contextFile, entryPoint, date string
	cmd := &cobra.Command{
		Use:   "run <pack>",
		Short: "Run a rule pack against a context file and show what changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pack, err := infrastructure.NewFileRuleLoader("").Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(contextFile)
			if err != nil {
				return err
			}
			var input map[string]any
			if err := json.Unmarshal(data, &input); err != nil {
				return fmt.Errorf("decoding %s: %w", contextFile, err)
			}
			effective := time.Now().UTC()
			if date != "" {
				if effective, err = region.ParseDate(date); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				snap, err := app.Registry.Snapshot(ctx)
				if err != nil {
					return err
				}
				fns := functions.Builtins(functions.Bindings{Regions: snap, EffectiveDate: effective})
				res, err := interfaces.RunEngine(ctx, entryPoint, input, *pack, fns)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(res)
				}
				printRun(res)
				if !res.OK {
					return res.Err()
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&contextFile, "context", "c", "", "JSON context file")
	cmd.Flags().StringVarP(&entryPoint, "entry-point", "e", domain.EntryPointCartCalculateVAT, "entry point to run")
	cmd.Flags().StringVar(&date, "date", "", "effective date YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("context")
	return cmd
}

func regionCmd() *cobra.Command {
	reg := &cobra.Command{Use: "region", Short: "Region registry"}
	var date string
	lookup := &cobra.Command{
		Use:   "lookup <country>",
		Short: "Resolve the VAT region of a country on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			effective := time.Now().UTC()
			if date != "" {
				var err error
				if effective, err = region.ParseDate(date); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				code := app.Registry.LookupRegion(ctx, args[0], effective)
				if jsonOutput() {
					return printJSON(map[string]string{"country": args[0], "date": region.FormatDate(effective), "region": code})
				}
				fmt.Printf("%s on %s: %s\n", args[0], region.FormatDate(effective), code)
				return nil
			})
		},
	}
	lookup.Flags().StringVar(&date, "date", "", "effective date YYYY-MM-DD")
	reg.AddCommand(lookup)
	return reg
}
