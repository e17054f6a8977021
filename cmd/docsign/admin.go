package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsign/auth"
	"docsign/db"
)

var errNoDatabase = errors.New("database.url is required for admin commands")

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative tasks run directly against the database",
	}
	cmd.AddCommand(newAdminMigrateCmd(a), newAdminRegisterClientCmd(a))
	return cmd
}

func newAdminMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Database.URL == "" {
				return errNoDatabase
			}
			pool, err := db.NewPool(cmd.Context(), a.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(a.out, "Schema is up to date.")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(a.out, "Applied %s\n", v)
			}
			return nil
		},
	}
}

func newAdminRegisterClientCmd(a *app) *cobra.Command {
	var req auth.RegisterRequest
	var role string
	cmd := &cobra.Command{
		Use:   "register-client",
		Short: "Create a service account for a UI host, the CLI or the e-sign provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Database.URL == "" {
				return errNoDatabase
			}
			generated := false
			if req.ClientSecret == "" {
				secret, err := generateSecret()
				if err != nil {
					return err
				}
				req.ClientSecret = secret
				generated = true
			}
			req.Role = auth.Role(role)

			pool, err := db.NewPool(cmd.Context(), a.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := auth.NewService(auth.NewRepository(pool), a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL)
			acc, err := svc.RegisterClient(cmd.Context(), req)
			if err != nil {
				return err
			}
			a.logger.Info("service account registered",
				zap.String("client_id", acc.ClientID),
				zap.String("role", string(acc.Role)))

			fmt.Fprintf(a.out, "client_id: %s\nrole: %s\n", acc.ClientID, acc.Role)
			if generated {
				fmt.Fprintf(a.out, "client_secret: %s\n", req.ClientSecret)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ClientID, "client-id", "", "client id of the new account")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.ClientSecret, "secret", "", "client secret; generated when empty")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleClient), "client or provider")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
