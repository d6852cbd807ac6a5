// Command kbctl runs maintenance tasks against the knowledge base stores.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ninersracing/kbwiki/internal/app"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/config"
	"github.com/ninersracing/kbwiki/internal/serial"
	"github.com/ninersracing/kbwiki/internal/users"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/spf13/cobra"
)

type opener func(ctx context.Context) (*app.App, error)

func openFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "kbctl",
		Short:         "Knowledge base maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBackfillCmd(open), newCreateCaptainCmd(open))
	return root
}

func newBackfillCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-serials",
		Short: "Assign serial numbers to documents that have none",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)
			n, err := serial.Backfill(ctx, a.Documents)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backfilled %d documents\n", n)
			return nil
		},
	}
}

func newCreateCaptainCmd(open opener) *cobra.Command {
	var in users.NewUser
	cmd := &cobra.Command{
		Use:   "create-captain",
		Short: "Create an active captain account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)
			in.Role = authz.RoleCaptain
			u, err := a.Users.Create(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created captain %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.FirstName, "first", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last", "", "last name")
	cmd.Flags().StringVar(&in.Subteam, "subteam", "", "home sub-team")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	if err := newRootCmd(openFromEnv).ExecuteContext(context.Background()); err != nil {
		logger.Errorf("kbctl: %v", err)
		os.Exit(1)
	}
}
