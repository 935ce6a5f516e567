package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lingoleap/lingoleap-hub/internal/app"
	"github.com/lingoleap/lingoleap-hub/internal/application/query"
)

func newLeaderboardCmd(rt *runtime) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank every user by total XP across languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Leaderboard.Handle(ctx, query.GetLeaderboardQuery{Limit: limit, Offset: offset})
				if err != nil {
					return err
				}
				return rt.emit(cmd, res, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "RANK\tUSER\tXP")
					for _, e := range res.Entries {
						fmt.Fprintf(tw, "%d\t%s\t%d\n", e.Rank, e.Username, e.TotalXP)
					}
					_ = tw.Flush()
					if res.HasMore {
						fmt.Fprintf(w, "showing %d of %d\n", len(res.Entries), res.TotalCount)
					}
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to show, 0 for all")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}
