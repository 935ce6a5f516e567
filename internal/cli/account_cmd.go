package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lingoleap/lingoleap-hub/internal/app"
	"github.com/lingoleap/lingoleap-hub/internal/application/command"
)

func newSignUpCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <username> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.SignUp.Handle(ctx, command.SignUpCommand{Username: args[0], Password: args[1]})
				if err != nil {
					return err
				}
				if err := rt.emit(cmd, res, func(w io.Writer) { fmt.Fprintln(w, res.Message) }); err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("sign up failed: %s", res.Message)
				}
				return nil
			})
		},
	}
}

func newLoginCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Check credentials and record today's login for the streak",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Auth.Login(ctx, command.LoginCommand{Username: args[0], Password: args[1]})
				if err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("login failed: %s", res.Message)
				}
				return rt.emit(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "%s (session %s)\n", res.Message, res.Token)
					if res.Streak != nil {
						fmt.Fprintf(w, "streak: %d day(s), last login %s\n", res.Streak.Count, res.Streak.LastLogin)
					}
				})
			})
		},
	}
}
