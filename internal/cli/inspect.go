package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagefold/pagefold/pkg/plan"
)

// inspectCommand creates the inspect command: summarize a plan file.
func (c *CLI) inspectCommand() *cobra.Command {
	var showEntries bool

	cmd := &cobra.Command{
		Use:   "inspect <plan.json>",
		Short: "Summarize a layout plan file",
		Long: `Summarize a layout plan file: page and entry counts, per-column
occupancy, and overflow warnings.

Examples:
  pagefold inspect newsletter.plan.json
  pagefold inspect newsletter.plan.json --entries`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.ReadFile(args[0])
			if err != nil {
				return err
			}
			printPlanSummary(p, showEntries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showEntries, "entries", false, "list every placed entry with its span")

	return cmd
}

// printPlanSummary renders the plan overview to stdout.
func printPlanSummary(p *plan.Plan, showEntries bool) {
	fmt.Println(StyleTitle.Render(fmt.Sprintf("Layout: %d pages, %d entries", p.PageCount(), p.EntryCount())))

	for _, page := range p.Pages {
		fmt.Println(StyleValue.Render(fmt.Sprintf("Page %d", page.PageNumber)))
		for _, col := range page.Columns {
			line := fmt.Sprintf("  column %d: %s entries", col.ColumnNumber, StyleNumber.Render(fmt.Sprintf("%d", len(col.Entries))))
			fmt.Println(line)
			if !showEntries {
				continue
			}
			for _, pl := range col.Entries {
				desc := pl.Entry.InstanceID
				if pl.Entry.List != nil {
					desc += fmt.Sprintf(" [items %d..%d of %d]",
						pl.Entry.List.StartIndex,
						pl.Entry.List.StartIndex+len(pl.Entry.List.Items)-1,
						pl.Entry.List.TotalCount)
					if pl.Entry.List.IsContinuation {
						desc += " (cont.)"
					}
				}
				span := fmt.Sprintf("%.0f-%.0fpx", pl.Span.Top, pl.Span.Bottom)
				flags := ""
				if pl.Overflow {
					flags = " " + StyleWarning.Render("overflow")
				}
				fmt.Printf("    %s %s%s\n", StyleValue.Render(desc), StyleDim.Render(span), flags)
			}
		}
	}

	if len(p.OverflowWarnings) == 0 {
		printSuccess("No overflow")
		return
	}
	var b strings.Builder
	for i, w := range p.OverflowWarnings {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s@p%dc%d", w.InstanceID, w.Page, w.Column)
	}
	printWarning("%d overflow warnings: %s", len(p.OverflowWarnings), b.String())
}
