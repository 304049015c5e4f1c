package db

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand: up, down, status or
// to <version>. Output goes to out.
func RunMigrateCommand(out io.Writer, args []string, dbPath string) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
	case "to":
		if len(args) < 2 {
			return fmt.Errorf("usage: trackline migrate to <version>")
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.MigrateTo(uint(v)); err != nil {
			return err
		}
	case "status":
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}
	return printMigrateStatus(out, database)
}

func printMigrateStatus(out io.Writer, database *DB) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "database: %s\n", database.Path())
	fmt.Fprintf(out, "version:  %d (latest %d)\n", version, latest)
	if dirty {
		fmt.Fprintln(out, "state:    dirty")
	} else if version < latest {
		fmt.Fprintf(out, "state:    %d migrations pending\n", latest-version)
	} else {
		fmt.Fprintln(out, "state:    up to date")
	}
	return nil
}

// PrintMigrateHelp writes usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: trackline migrate <action>

Actions:
  up            apply all pending migrations
  down          roll back the most recent migration
  to <version>  migrate up or down to version
  status        show the current schema version
`)
}
