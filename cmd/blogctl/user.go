package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/userservice"
)

var (
	newUsername    string
	newEmail       string
	newPassword    string
	newPermissions []string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage admin accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account that can sign in to the admin API",
	Long: `Create stores a new account with the given permissions. The password is
read from --password or the BLOGCTL_PASSWORD environment variable.`,
	RunE: runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVar(&newUsername, "username", "", "Username")
	userCreateCmd.Flags().StringVar(&newEmail, "email", "", "Email address")
	userCreateCmd.Flags().StringVar(&newPassword, "password", "", "Password")
	userCreateCmd.Flags().StringSliceVar(&newPermissions, "permission", []string{string(userservice.PermissionWritePost)}, "Permission to grant, repeatable")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("email")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	password := newPassword
	if password == "" {
		password = os.Getenv("BLOGCTL_PASSWORD")
	}

	db, err := common.NewDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, 2, 2, time.Minute)
	if err != nil {
		return err
	}
	defer common.CloseDB(db)

	permissions := make([]userservice.Permission, 0, len(newPermissions))
	for _, p := range newPermissions {
		permissions = append(permissions, userservice.Permission(p))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	users := userservice.NewUserService(db, userservice.NewTokenIssuer(cfg.JWTSecret, 0))
	u, err := users.CreateUser(ctx, newUsername, newEmail, password, permissions...)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s) with %v\n", u.ID, u.Username, u.Permissions)
	return nil
}
