package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/migrate"
	"hostelhub.org/internal/store/pg"
	"hostelhub.org/internal/tenancy"
)

const commandTimeout = 30 * time.Second

func openStore(dsn string) (*pg.Store, error) {
	if dsn == "" {
		return nil, errors.New("missing DSN: provide via --dsn or HOSTEL_PG_DSN")
	}
	return pg.Open(dsn)
}

func migrateCmd(dsn *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}
	run := func(fn func(ctx context.Context, m *migrate.Manager, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(*dsn)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			return fn(ctx, migrate.NewManager(store.DB(), migrate.Migrations(), migrate.Seeds()), cmd)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(ctx context.Context, m *migrate.Manager, cmd *cobra.Command) error {
				pending, err := m.Pending(ctx)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					cmd.Println("No pending migrations.")
					return nil
				}
				if err := m.Up(ctx); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				for _, name := range pending {
					cmd.Printf("applied %s\n", name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: run(func(ctx context.Context, m *migrate.Manager, _ *cobra.Command) error {
				if err := m.Down(ctx); err != nil {
					return fmt.Errorf("migrate down: %w", err)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			RunE: run(func(ctx context.Context, m *migrate.Manager, cmd *cobra.Command) error {
				applied, err := m.Status(ctx)
				if err != nil {
					return err
				}
				pending, err := m.Pending(ctx)
				if err != nil {
					return err
				}
				for _, name := range applied {
					cmd.Printf("applied  %s\n", name)
				}
				for _, name := range pending {
					cmd.Printf("pending  %s\n", name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Load seed data that has not been loaded yet",
			RunE: run(func(ctx context.Context, m *migrate.Manager, _ *cobra.Command) error {
				if err := m.Seed(ctx); err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				return nil
			}),
		},
	)
	return cmd
}

func tokensCmd(dsn *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Maintain refresh tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "gc",
		Short: "Delete expired refresh tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(*dsn)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			n, err := store.RefreshTokens().DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("tokens gc: %w", err)
			}
			cmd.Printf("deleted %d expired refresh tokens\n", n)
			return nil
		},
	})
	return cmd
}

func bootstrapCmd(dsn *string) *cobra.Command {
	var (
		email    string
		password string
		name     string
		tenantID string
		tenantNm string
	)
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create initial records in an empty deployment",
	}
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Create a top admin principal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if err := auth.ValidatePasswordStrength(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			store, err := openStore(*dsn)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			p := &auth.Principal{
				Email:         email,
				DisplayName:   name,
				Role:          auth.RoleTopAdmin,
				Active:        true,
				EmailVerified: true,
				PasswordHash:  hash,
			}
			if err := store.Principals().Create(ctx, p); err != nil {
				return fmt.Errorf("create principal: %w", err)
			}
			cmd.Printf("created top admin %s (%s)\n", p.ID, p.Email)
			return nil
		},
	}
	admin.Flags().StringVar(&email, "email", "", "login email")
	admin.Flags().StringVar(&password, "password", "", "initial password")
	admin.Flags().StringVar(&name, "name", "Top Admin", "display name")

	hostel := &cobra.Command{
		Use:   "tenant",
		Short: "Create a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantNm == "" {
				return errors.New("--name is required")
			}
			store, err := openStore(*dsn)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			t := &tenancy.Tenant{ID: tenantID, Name: tenantNm, Active: true}
			if err := store.Tenancy().CreateTenant(ctx, t); err != nil {
				return fmt.Errorf("create tenant: %w", err)
			}
			cmd.Printf("created tenant %s (%s)\n", t.ID, t.Name)
			return nil
		},
	}
	hostel.Flags().StringVar(&tenantNm, "name", "", "tenant name")
	hostel.Flags().StringVar(&tenantID, "id", "", "explicit tenant id")

	cmd.AddCommand(admin, hostel)
	return cmd
}
