package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lingoleap/lingoleap-hub/config"
	"github.com/lingoleap/lingoleap-hub/internal/app"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/postgres"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	var status, rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if rt.cfg.Storage.Backend != config.BackendPostgres {
				if status || rollback {
					return fmt.Errorf("--status and --rollback need the postgres backend, not %s", rt.cfg.Storage.Backend)
				}
				// Opening creates whatever schema the backend keeps.
				store, err := app.OpenStore(ctx, rt.cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s backend ready\n", rt.cfg.Storage.Backend)
				return nil
			}

			conn, err := postgres.NewConnection(ctx, app.PostgresConfig(rt.cfg))
			if err != nil {
				return err
			}
			defer conn.Close()
			m := postgres.NewMigrator(conn)

			switch {
			case rollback:
				if err := m.Rollback(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "rolled back the last migration")
				return nil
			case status:
				migrations, err := m.Status(ctx)
				if err != nil {
					return err
				}
				return rt.emit(cmd, migrations, func(w io.Writer) {
					for _, mig := range migrations {
						state := "pending"
						if mig.IsApplied {
							state = "applied " + mig.AppliedAt.Format("2006-01-02 15:04:05")
						}
						fmt.Fprintf(w, "%03d %-28s %s\n", mig.Version, mig.Name, state)
					}
				})
			default:
				n, err := m.Migrate(ctx)
				if err != nil {
					return err
				}
				rt.log.Info("migrations applied", logger.Int("count", n))
				fmt.Fprintf(out, "applied %d migration(s)\n", n)
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "List migrations and whether they ran")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Revert the last applied migration")
	cmd.MarkFlagsMutuallyExclusive("status", "rollback")
	return cmd
}
