package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/medilab/lims/internal/config"
	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/domain/catalog"
	"github.com/medilab/lims/internal/domain/patient"
	"github.com/medilab/lims/internal/domain/user"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/db"
	"github.com/medilab/lims/internal/platform/idgen"
	"github.com/medilab/lims/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lims-server",
		Short: "Laboratory information system API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationSource picks --dir, then MIGRATIONS_DIR, then the schema built
// into the binary.
func migrationSource(flagDir, envDir string) fs.FS {
	switch {
	case flagDir != "":
		return os.DirFS(flagDir)
	case envDir != "":
		return os.DirFS(envDir)
	default:
		return migrations.FS
	}
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *db.Migrator) error) error {
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrationSource(dir, cfg.MigrationsDir)))
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.PersistentFlags().String("dir", "", "Read migrations from this directory instead of the embedded schema")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					state, at := "pending", ""
					if s.Applied {
						state = "applied"
						at = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
				}
				return nil
			})
		},
	})
	return cmd
}

// cliContext acts as an Admin named "cli" so services record who made the
// change.
func cliContext() context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: "cli", Role: auth.RoleAdmin})
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")
			password, _ := cmd.Flags().GetString("password")
			phone, _ := cmd.Flags().GetString("phone")
			patientRef, _ := cmd.Flags().GetString("patient")

			u := &user.User{FullName: name, Email: email, Role: role, Phone: phone}
			if patientRef != "" {
				ref, err := uuid.Parse(patientRef)
				if err != nil {
					return fmt.Errorf("invalid --patient: %w", err)
				}
				u.PatientRef = &ref
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cliContext()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			ids := idgen.New()
			activity := activitylog.NewService(activitylog.NewRepo(pool), ids, cliLogger())
			patients := patient.NewService(patient.NewRepo(pool), ids, activity)
			users := user.NewService(user.NewRepo(pool), patients, activity)
			if err := users.Create(ctx, u, password); err != nil {
				return err
			}
			fmt.Printf("Created %s account %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Full name")
	createCmd.Flags().String("email", "", "Sign-in email")
	createCmd.Flags().String("role", auth.RoleAdmin, "Role: Admin, Doctor, Technician, Staff or Patient")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("phone", "", "Contact number")
	createCmd.Flags().String("patient", "", "Patient record id for Patient accounts")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")
	cmd.AddCommand(createCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data",
	}

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Create or update test definitions from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			defs, err := catalog.LoadYAML(f)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cliContext()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			activity := activitylog.NewService(activitylog.NewRepo(pool), idgen.New(), cliLogger())
			n, err := catalog.NewService(catalog.NewRepo(pool), activity).Import(ctx, defs)
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %d test definition(s) from %s\n", n, file)
			return nil
		},
	}
	catalogCmd.Flags().String("file", "seed/catalog.yaml", "Catalog YAML file")
	cmd.AddCommand(catalogCmd)
	return cmd
}
