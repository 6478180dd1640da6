package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagefold/pagefold/pkg/errors"
	"github.com/pagefold/pagefold/pkg/measure"
	"github.com/pagefold/pagefold/pkg/store"
)

// measureCommand creates the measure command group for managing stored
// measurement snapshots.
func (c *CLI) measureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Manage the stored measurement snapshot of a document",
	}

	cmd.AddCommand(c.measureListCommand())
	cmd.AddCommand(c.measureSetCommand())
	cmd.AddCommand(c.measureDeleteCommand())

	return cmd
}

// measureListCommand lists the stored measurements of a document.
func (c *CLI) measureListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <document-id>",
		Short: "List stored measurements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore(false)
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := store.LoadMeasurements(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			if len(snap) == 0 {
				fmt.Println(StyleDim.Render("no stored measurements"))
				return nil
			}

			keys := make([]string, 0, len(snap))
			for k := range snap {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				rec := snap[k]
				fmt.Printf("%s %s %s\n",
					StyleValue.Render(k),
					StyleNumber.Render(fmt.Sprintf("%.1fpx", rec.Height)),
					StyleDim.Render(rec.MeasuredAt.Format(time.RFC3339)))
			}
			return nil
		},
	}
}

// measureSetCommand records a measurement into the stored snapshot.
// Recording a height of 0 deletes the key, matching the live semantics.
func (c *CLI) measureSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <document-id> <key> <height>",
		Short: "Record a measured height (0 deletes the key)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidHeight, err, "parsing height %q", args[2])
			}

			st, err := newStore(false)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			snap, err := store.LoadMeasurements(ctx, st, args[0])
			if err != nil {
				return err
			}

			ms := measure.NewStore(nil)
			ms.Restore(snap)
			ms.Apply([]measure.Record{{Key: args[1], Height: height, MeasuredAt: time.Now()}})

			if err := store.SaveMeasurements(ctx, st, args[0], ms.Snapshot()); err != nil {
				return err
			}
			if height <= 0 {
				printSuccess("Deleted %s", args[1])
			} else {
				printSuccess("Recorded %s = %.1fpx", args[1], height)
			}
			return nil
		},
	}
}

// measureDeleteCommand removes the whole stored snapshot of a document.
func (c *CLI) measureDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document's stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore(false)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(cmd.Context(), store.MeasurementsKey(args[0])); err != nil {
				return err
			}
			printSuccess("Deleted snapshot for %s", args[0])
			return nil
		},
	}
}
