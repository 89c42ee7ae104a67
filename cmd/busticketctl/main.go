// Command busticketctl runs operational tasks against the BusTicket database:
// schema migrations, the first admin account and fixture seeding.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"busticket/internal/config"
	"busticket/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var Version = "dev"

type globals struct {
	dsn           string
	migrationsDir string
	cfg           *config.Config
	log           *logger.Logger
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	g := &globals{cfg: cfg, log: logger.NewWithWriter(os.Stderr)}

	rootCmd := &cobra.Command{
		Use:           "busticketctl",
		Short:         "Operations tool for the BusTicket database",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.dsn, "dsn", cfg.Database.DSN, "Postgres DSN (default from POSTGRES_DSN)")
	rootCmd.PersistentFlags().StringVar(&g.migrationsDir, "migrations-dir", cfg.Database.MigrationsDir, "directory holding the *.sql migrations")

	rootCmd.AddCommand(migrateCmd(g))
	rootCmd.AddCommand(createAdminCmd(g))
	rootCmd.AddCommand(seedCmd(g))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openDB connects through pgdriver and checks the connection.
func (g *globals) openDB(ctx context.Context) (*sql.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(g.dsn)))
	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return sqldb, nil
}

func (g *globals) openBun(ctx context.Context) (*bun.DB, error) {
	sqldb, err := g.openDB(ctx)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}
