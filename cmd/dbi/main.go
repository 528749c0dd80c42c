// Package main is the entrypoint for the dbi bot binary.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/morezero/dbi/internal/config"
	"github.com/morezero/dbi/internal/server"
	"github.com/morezero/dbi/pkg/db"
)

const usage = `Usage: dbi [command]
       dbi serve                      Start the bot (Discord sessions, HTTP status, metrics).
       dbi publish [guild|global]     Publish the command tree. Add --force to skip the version gate.
       dbi migrate up                 Create the Postgres store schema.
       dbi migrate status             Show whether the store schema exists.
       dbi clear [prefix]             Delete stored keys (all keys when no prefix); schema is preserved.

Commands:
  serve           (default) Start the bot.
  publish         Bulk-overwrite guild or global commands (default PUBLISH_SCOPE).
  migrate up      Run database migrations only.
  migrate status  Show current migration status.
  clear [prefix]  Remove rate limits and publish records from the Postgres store.

Environment: DISCORD_TOKENS, DISCORD_APP_ID, DBI_STORE, DATABASE_URL, REDIS_URL, COMMS_URL,
PUBLISH_SCOPE, PUBLISH_GUILD_ID, PUBLISH_VERSION. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "publish":
		scope, force, err := parsePublishArgs(args[1:])
		if err != nil {
			log.Fatalf("dbi publish: %v", err)
		}
		res, err := server.Publish(scope, force, handlers()...)
		if err != nil {
			log.Fatalf("dbi publish: %v", err)
		}
		if res.Skipped {
			fmt.Printf("Skipped: version already published (last %s).\n", res.Previous)
			return
		}
		fmt.Printf("Published %d commands.\n", len(res.Commands))
		return
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("dbi migrate: require subcommand (up, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("dbi migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("dbi migrate status: %v", err)
			}
		default:
			log.Fatalf("dbi migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "clear":
		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}
		if err := runClear(prefix); err != nil {
			log.Fatalf("dbi clear: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(handlers()...); err != nil {
		log.Fatalf("dbi: %v", err)
	}
}

// parsePublishArgs reads "[guild|global] [--force]" in any order.
func parsePublishArgs(args []string) (scope string, force bool, err error) {
	for _, a := range args {
		switch a {
		case "--force", "-f":
			force = true
		case "guild", "Guild":
			scope = "Guild"
		case "global", "Global":
			scope = "Global"
		default:
			return "", false, fmt.Errorf("unknown argument %q (use guild, global, --force)", a)
		}
	}
	return scope, force, nil
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	ok, err := db.MigrationStatus(ctx, pool)
	if err != nil {
		return err
	}
	if ok {
		fmt.Println("Store schema: applied")
	} else {
		fmt.Println("Store schema: missing (run: dbi migrate up)")
	}
	return nil
}

func runClear(prefix string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	n, err := db.ClearStore(ctx, pool, prefix)
	if err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	if n >= 0 {
		fmt.Printf("Removed %d keys.\n", n)
	}
	return nil
}
