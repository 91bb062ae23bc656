package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/usecase/runengine"
)

func jsonOutput() bool { return viper.GetBool("json") }

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(title string, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(title)
	tw.AppendHeader(header)
	return tw
}

func printResult(res domain.VATResult) {
	fmt.Printf("Execution: %s  Status: %s  Region: %s\n", res.ExecutionID, res.Status, res.Region)
	if res.Error != "" {
		fmt.Printf("Error: %s\n", res.Error)
	}

	items := newTable("Items", table.Row{"ID", "Net", "Region", "Rate", "VAT", "Gross", "Rule"})
	for _, it := range res.Items {
		items.AppendRow(table.Row{it.ID, it.NetAmount, it.VATRegion, it.VATRate.Percent(), it.VATAmount, it.GrossAmount, it.RuleApplied})
	}
	items.Render()

	breakdown := newTable("Breakdown", table.Row{"Region", "Rate", "Items", "Net", "VAT", "Gross"})
	for _, row := range res.Breakdown {
		breakdown.AppendRow(table.Row{row.Region, row.Rate, row.ItemCount, row.Net, row.VAT, row.Gross})
	}
	breakdown.AppendFooter(table.Row{"", "", "Total", res.Totals.Net, res.Totals.VAT, res.Totals.Gross})
	breakdown.Render()
}

func printRules(rules []engine.Rule) {
	tw := newTable("Rules", table.Row{"Priority", "Rule", "Schema", "Actions", "Stop"})
	for _, r := range rules {
		actions := make([]string, 0, len(r.Actions))
		for _, a := range r.Actions {
			if a.Name != "" {
				actions = append(actions, string(a.Type)+":"+a.Name)
				continue
			}
			actions = append(actions, string(a.Type))
		}
		tw.AppendRow(table.Row{r.Priority, r.Ref(), r.RulesFieldsID, strings.Join(actions, ", "), r.StopProcessing})
	}
	tw.Render()
}

func printRun(res runengine.Result) {
	log := newTable("Rule log", table.Row{"Rule", "Condition", "Status", "Actions", "ms", "Error"})
	for _, rx := range res.RulesExecuted {
		log.AppendRow(table.Row{fmt.Sprintf("%s:v%d", rx.RuleID, rx.Version), rx.ConditionResult, rx.Status, len(rx.ActionsApplied), rx.DurationMs, rx.Error})
	}
	log.Render()

	delta := newTable("Delta", table.Row{"Path", "Value"})
	for _, path := range sortedKeys(res.Delta) {
		delta.AppendRow(table.Row{path, res.Delta[path]})
	}
	delta.Render()

	for _, m := range res.Messages {
		fmt.Println("message:", m)
	}
	if res.Halted {
		fmt.Println("halted:", res.HaltReason)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
