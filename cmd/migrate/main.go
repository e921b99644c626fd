package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"chatapp/config"
	"chatapp/internal/bootstrap"
	"chatapp/pkg/logger"
)

const usage = `
Chat - Storage CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create the postgres schema or the mongo indexes
  status      Check the storage connection
  seed-dev    Seed demo users, chats and messages

Flags:
  -users int      Number of demo users for seed-dev (default 4)
  -messages int   Messages per demo chat for seed-dev (default 3)

The storage backend is chosen by STORAGE_DRIVER.
`

func main() {
	users := flag.Int("users", bootstrap.DefaultSeedConfig().Users, "Number of demo users for seed-dev")
	messages := flag.Int("messages", bootstrap.DefaultSeedConfig().MessagesPerChat, "Messages per demo chat for seed-dev")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	l := logger.New(cfg.LogMode)
	defer l.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backend, err := bootstrap.OpenStore(ctx, cfg, l)
	if err != nil {
		log.Fatalf("Storage connection failed: %v", err)
	}
	defer func() { _ = backend.Store.Close(context.Background()) }()

	switch command := flag.Arg(0); command {
	case "up":
		if err := backend.Migrate(ctx); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Printf("Migrations completed for %s", cfg.StorageDriver)
	case "status":
		if err := backend.Store.Ping(ctx); err != nil {
			log.Fatalf("Storage connection failed: %v", err)
		}
		log.Printf("Storage connection (%s): OK", cfg.StorageDriver)
	case "seed-dev":
		if err := backend.Migrate(ctx); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		result, err := bootstrap.Seed(ctx, backend.Store, bootstrap.SeedConfig{Users: *users, MessagesPerChat: *messages}, l)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		for i, id := range result.Users {
			log.Printf("Demo user %d: %s", i+1, id)
		}
		log.Printf("Seeded %d chats and %d messages", len(result.Chats), result.Messages)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
