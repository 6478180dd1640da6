package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagefold/pagefold/pkg/compose"
	"github.com/pagefold/pagefold/pkg/errors"
	"github.com/pagefold/pagefold/pkg/plan"
)

// layoutOpts holds the command-line flags for the layout command.
type layoutOpts struct {
	output  string // output file path ("-" for stdout)
	noStore bool   // disable measurement/plan persistence
	strict  bool   // fail instead of estimating unmeasured instances
}

// layoutCommand creates the layout command: compute a plan from a
// document file and write it as JSON.
func (c *CLI) layoutCommand() *cobra.Command {
	var opts layoutOpts

	cmd := &cobra.Command{
		Use:   "layout <document.toml>",
		Short: "Compute a layout plan from a document file",
		Long: `Compute a layout plan from a TOML document file.

The document describes the instance set, the slot template, the page
geometry, and the item lists backing list-shaped instances. Measured
heights come from the document's [measurements] table merged over the
stored snapshot from previous runs; instances with no measurement at
all fall back to heuristic estimates unless --strict is set.

Examples:
  pagefold layout newsletter.toml
  pagefold layout newsletter.toml -o plan.json
  pagefold layout newsletter.toml --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			return c.runLayout(ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default <document>.plan.json, '-' for stdout)")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "disable measurement and plan persistence")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail when instances have no measurement instead of estimating")

	return cmd
}

func (c *CLI) runLayout(ctx context.Context, docPath string, opts layoutOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	doc, err := loadDocument(docPath)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	}

	st, err := newStore(opts.noStore)
	if err != nil {
		return err
	}
	defer st.Close()

	sess := compose.NewSession(compose.Config{
		DocumentID:         doc.ID,
		Geometry:           doc.Geometry,
		RequestedPageCount: doc.RequestedPages,
		Logger:             logger,
		Persistence:        st,
	})
	defer sess.Close()

	if err := sess.LoadPersisted(ctx); err != nil {
		logger.Warn("stored measurements unavailable", "err", err)
	}

	sess.SetComponents(doc.Instances)
	sess.SetTemplate(doc.Template)
	sess.SetDataSources(doc.Sources)

	for _, rec := range doc.Seed {
		sess.RecordMeasurement(rec.Key, rec.Height, rec.MeasuredAt)
	}
	sess.FlushMeasurements()

	if !sess.MeasurementComplete() {
		proxies := sess.ProxyEntries()
		if opts.strict {
			return errors.New(errors.ErrCodeInvalidDocument,
				"%d instances have no measurement (first: %s)", len(proxies), proxies[0].InstanceID)
		}
		logger.Warnf("Estimating %d unmeasured instances", len(proxies))
		for _, p := range proxies {
			sess.RecordMeasurement(p.MeasurementKey, p.EstimatedHeight, time.Now())
		}
		sess.FlushMeasurements()
	}

	result, ok := sess.Recalculate()
	if !ok {
		return errors.New(errors.ErrCodeInternal, "document %s produced nothing to recompute", doc.ID)
	}
	if _, err := sess.Commit(ctx); err != nil {
		logger.Warn("archiving plan failed", "err", err)
	}

	if err := writePlan(result, opts.output, docPath); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Computed layout: %d pages, %d entries", result.PageCount(), result.EntryCount()))

	for _, w := range result.OverflowWarnings {
		printWarning("overflow: %s at page %d column %d", w.InstanceID, w.Page, w.Column)
	}
	return nil
}

// writePlan writes the plan to the chosen destination. The default path
// derives from the document file name.
func writePlan(p *plan.Plan, output, docPath string) error {
	if output == "-" {
		data, err := plan.Marshal(p)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	if output == "" {
		output = strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".plan.json"
	}
	if err := plan.WriteFile(p, output); err != nil {
		return err
	}
	printSuccess("Wrote %s", output)
	return nil
}
