package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koman-maciej/insurance/internal/auth"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage user credentials for bcrypt mode",
}

var credentialsHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Read a password from stdin and print its bcrypt hash",
	Long: `Reads one line from stdin and prints a bcrypt hash for use in
credentials.password_hashes.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return errors.New("password must not be empty")
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	credentialsCmd.AddCommand(credentialsHashCmd)
}
