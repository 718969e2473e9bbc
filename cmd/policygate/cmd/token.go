package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/koman-maciej/insurance/cmd/policygate/cmd/cmdutil"
	"github.com/koman-maciej/insurance/internal/auth"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue and inspect access tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint an access token with the configured signing secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := cmdutil.NewTokenCodec(cfg)
		if err != nil {
			return err
		}

		role := auth.Role(tokenRole)
		if _, known := auth.DefaultRolePermissions[role]; !known {
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		token, err := codec.Issue(tokenSubject, role, time.Now())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, token.Raw)
		fmt.Fprintf(out, "# subject=%s role=%s expires=%s\n", token.SubjectID, token.Role, token.ExpiresAt.UTC().Format(time.RFC3339))
		return nil
	},
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Verify a token and print its principal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := cmdutil.NewTokenCodec(cfg)
		if err != nil {
			return err
		}

		principal, err := codec.Verify(args[0], time.Now())
		if err != nil {
			return fmt.Errorf("token rejected (%s): %w", tokenFailureKind(err), err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "subject: %s\nrole:    %s\n", principal.SubjectID, principal.Role)
		return nil
	},
}

func tokenFailureKind(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenInvalidSignature):
		return "invalid signature"
	default:
		return "malformed"
	}
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd)
	tokenCmd.AddCommand(tokenInspectCmd)

	tokenIssueCmd.Flags().StringVar(&tokenSubject, "subject", "", "Subject (user id) of the token")
	tokenIssueCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleUser), "Role claim (user or admin)")
	_ = tokenIssueCmd.MarkFlagRequired("subject")
}
