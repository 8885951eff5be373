package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"cine-journey/logging"
	"cine-journey/storage"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
)

var cli struct {
	Data    string `help:"Path to database directory" default:"./data" env:"CINE_STORAGE_DATA_PATH"`
	Command string `arg:"" optional:"" help:"Migration command: up, down, status, version or reset" enum:"up,down,status,version,reset" default:"up"`
}

func main() {
	kong.Parse(&cli, kong.Name("migrate"), kong.Description("Manages the catalog database schema."))
	logging.Init(logging.Config{Level: "info", Format: "console"})

	if err := run(context.Background()); err != nil {
		log.Fatal().Err(err).Str("command", cli.Command).Msg("Migration command failed")
	}
}

func run(ctx context.Context) error {
	// Initialize applies pending migrations, so open the database directly
	// for commands that must observe the schema as it is.
	sqliteStorage := storage.NewSQLiteStorage(cli.Data)
	if cli.Command == "up" {
		if err := sqliteStorage.Initialize(); err != nil {
			return err
		}
		defer sqliteStorage.Close()
		log.Info().Msg("Migrations completed successfully")
		return nil
	}

	if _, err := sqliteStorage.GetDB(); err != nil {
		return err
	}
	defer sqliteStorage.Close()

	switch cli.Command {
	case "down":
		return sqliteStorage.RollbackMigration(ctx)

	case "status":
		statuses, err := sqliteStorage.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tMIGRATION\tAPPLIED AT")
		for _, s := range statuses {
			applied := "pending"
			if s.Applied {
				applied = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
		}
		return w.Flush()

	case "version":
		version, err := sqliteStorage.GetDatabaseVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Database version: %d\n", version)
		return nil

	case "reset":
		return sqliteStorage.ResetDatabase(ctx)
	}
	return nil
}
