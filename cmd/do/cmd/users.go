package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clickfit/clickfit/internal/repository"
	"github.com/clickfit/clickfit/internal/service"
)

func UsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	var (
		email    string
		password string
		userType string
		inactive bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user with a bcrypt-hashed password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			database, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			active := !inactive
			users := service.NewUserService(repository.NewUserRepository(database))
			user, err := users.Create(cmd.Context(), service.CreateUserInput{
				Email:    email,
				Password: password,
				Type:     userType,
				Active:   &active,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s (%s)\n", user.Type, user.Email, user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&password, "password", "", "password (8-72 characters)")
	create.Flags().StringVar(&userType, "type", "user", "user, admin or trainer")
	create.Flags().BoolVar(&inactive, "inactive", false, "create the account deactivated")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
