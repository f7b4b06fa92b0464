package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/academia-hq/academia/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var nu user.NewUser
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user. The password is prompted next",
		RunE: func(cmd *cobra.Command, args []string) error {
			if nu.Username == "" && nu.Email == "" {
				return fmt.Errorf("one of --username or --email is required")
			}
			pwd, err := cli.promptPassword(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			nu.Password, nu.PasswordConfirm = pwd, pwd

			ctx := cmd.Context()
			if err = nu.Validate(ctx, cli.validate, cli.svcs.User); err != nil {
				return cli.describe(err)
			}
			usr, err := cli.svcs.User.Create(ctx, nu)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&nu.Name, "name", "", "full name")
	cmd.Flags().StringVar(&nu.Username, "username", "", "login name")
	cmd.Flags().StringVar(&nu.Email, "email", "", "email address")
	cmd.Flags().StringSliceVar(&nu.Roles, "role", nil, "role to grant, repeatable (admin:owner, admin:, teacher:, ...)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
