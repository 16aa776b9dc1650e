package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain or forget the bearer token for a user",
	}

	var show bool
	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Return a bearer token, exchanging the email at /jwt when none is cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity("fetch token")
			if err != nil {
				return err
			}
			raw, err := a.session.Exchange().FetchJWT(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := struct {
				Identity  string    `json:"identity"`
				Token     string    `json:"token"`
				ExpiresAt time.Time `json:"expiresAt,omitempty"`
			}{
				Identity: id,
				Token:    logutil.RedactToken(raw, show || a.cfg.Logging.AllowSensitive),
			}
			if cur := a.session.Tokens().Current(); cur != nil {
				out.ExpiresAt = cur.ExpiresAt
			}
			return a.printValue(out)
		},
	}
	fetch.Flags().BoolVar(&show, "show", false, "Print the full token instead of a redacted form")

	forget := &cobra.Command{
		Use:   "forget",
		Short: "Delete the cached token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity("forget token")
			if err != nil {
				return err
			}
			a.session.Tokens().Forget(cmd.Context(), id)
			a.logger.Info("token forgotten", "identity", id)
			return nil
		},
	}

	cmd.AddCommand(fetch, forget)
	return cmd
}
