// Package records prints the persisted measurement table.
package records

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/camruler/camruler/internal/app"
	"github.com/camruler/camruler/internal/datastore"
	"github.com/camruler/camruler/internal/measure"
)

// Command creates the records command.
func Command(ctx *app.Context) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Print saved measurements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[len(records)-limit:]
			}
			return Print(cmd, records)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Print only the last n records")
	return cmd
}

// Print writes records as an aligned table with the persisted column headers.
func Print(cmd *cobra.Command, records []measure.Record) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	h := datastore.Header
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h[0], h[1], h[2], h[3])
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			strconv.Itoa(r.Product),
			measure.FormatValue(r.Width),
			measure.FormatValue(r.Height),
			measure.JoinDistances(r.Distances))
	}
	return w.Flush()
}
