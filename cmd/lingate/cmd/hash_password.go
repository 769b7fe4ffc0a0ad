package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lin-gate/lingate/internal/domain/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Generate a bcrypt hash for the admin password",
	Long: `Generate a bcrypt hash of an admin password.

The output can be written into the config table (key admin_password_hash)
to provision or reset the admin credential without going through the API.

Example:
  lingate hash-password "my-admin-password"
  # Output: $2a$10$...

Security note: The password will appear in shell history.
Consider clearing history after use or using an environment variable:
  lingate hash-password "$ADMIN_PASSWORD"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
