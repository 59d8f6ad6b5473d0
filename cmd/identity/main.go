package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stubbl/identity/internal/identity/app"
	"github.com/stubbl/identity/internal/identity/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var mongoURI string

	root := &cobra.Command{
		Use:          "identity",
		Short:        "Identity provider persistence service",
		Version:      app.BuildVersion,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection string including the database (overrides IDENTITY_MONGO_URI)")

	config := func() app.Config {
		app.LoadEnvFiles()
		cfg := app.LoadConfig()
		if mongoURI != "" {
			cfg.MongoURI = mongoURI
		}
		return cfg
	}

	root.AddCommand(
		newServeCmd(config),
		newIndexesCmd(config),
		newSeedClientsCmd(config),
		newCreateUserCmd(config),
	)
	return root
}

func newServeCmd(config func() app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin and health HTTP server with grant housekeeping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.New(cmd.Context(), config())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}
}

func newIndexesCmd(config func() app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the collection indexes and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config()
			db, err := app.OpenStore(cmd.Context(), cfg, app.NewLogger(cfg))
			if err != nil {
				return err
			}
			return db.Close(context.Background())
		},
	}
}

func newSeedClientsCmd(config func() app.Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-clients",
		Short: "Create or replace OAuth clients from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config()
			logger := app.NewLogger(cfg)

			clients, err := service.LoadClientSeed(file)
			if err != nil {
				return err
			}

			db, err := app.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(context.Background())

			res, err := service.SeedClients(cmd.Context(), db.ClientImporter(), clients)
			if err != nil {
				return err
			}
			logger.Info("client seeding completed", "created", res.Created, "updated", res.Updated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "clients.yaml", "client seed file")
	return cmd
}

func newCreateUserCmd(config func() app.Config) *cobra.Command {
	var req service.RegisterRequest
	var roles []string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register a local user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config()
			logger := app.NewLogger(cfg)
			ctx := cmd.Context()

			if req.Password == "" {
				req.Password = os.Getenv("IDENTITY_USER_PASSWORD")
			}

			db, err := app.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(context.Background())

			accounts, err := app.NewAccountService(cfg, db.Users())
			if err != nil {
				return err
			}
			u, err := accounts.Register(ctx, req)
			if err != nil {
				return err
			}

			for _, r := range roles {
				if err := db.Users().AddToRole(ctx, u, r); err != nil {
					return err
				}
			}
			if len(roles) > 0 {
				if err := db.Users().Update(ctx, u); err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "username")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (or IDENTITY_USER_PASSWORD)")
	cmd.Flags().StringVar(&req.GivenName, "given-name", "", "given name")
	cmd.Flags().StringVar(&req.FamilyName, "family-name", "", "family name")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to add, repeatable")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
