package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/academia-hq/academia/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resetpassword USERNAME|EMAIL",
		Short: "Reset a user's password. The password is prompted next",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			usr, err := cli.svcs.User.GetByUsernameOrEmail(ctx, args[0])
			if err != nil {
				return err
			}
			pwd, err := cli.promptPassword(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
			if err = uu.Validate(ctx, usr, cli.validate, cli.svcs.User); err != nil {
				return cli.describe(err)
			}
			if _, err = cli.svcs.User.Update(ctx, usr, uu); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password of %s updated\n", usr.Username)
			return nil
		},
	}
}
