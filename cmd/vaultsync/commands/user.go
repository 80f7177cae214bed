package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/vaultsync/internal/auth"
	"github.com/marmos91/vaultsync/pkg/vault/models"
	"github.com/marmos91/vaultsync/pkg/vault/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage server accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <name> <email> <password>",
	Short: "Create a new account",
	Long: `Create a new account directly in the database.

There is no public signup endpoint. Accounts are provisioned with this
command by whoever operates the server.

Example:
  vaultsync user create "Jane Doe" jane@example.com s3cret`,
	Args: cobra.ExactArgs(3),
	RunE: runUserCreate,
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	name, email, password := args[0], args[1], args[2]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	salt, err := auth.GenerateSecret(auth.SecretLength)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password, salt)
	if err != nil {
		return err
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hash,
		Salt:     salt,
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	cmd.Printf("User created, uid: %d.\n", user.ID)
	return nil
}

func init() {
	userCmd.AddCommand(userCreateCmd)
}
