// Command seed fills the configured store with demo NerdTalk data.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"nerdtalk/internal/config"
	"nerdtalk/internal/middleware"
	"nerdtalk/internal/seed"
	"nerdtalk/internal/service"
	"nerdtalk/internal/store"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to onboard")
	numCommunities := flag.Int("communities", defaults.Communities, "Number of communities to create")
	threads := flag.Int("threads", defaults.ThreadsPerUser, "Top-level posts per user")
	depth := flag.Int("depth", defaults.Depth, "Reply levels under each top-level post")
	fanout := flag.Int("replies", defaults.RepliesPerPost, "Replies per post at every level")
	randSeed := flag.Int64("seed", 0, "Random seed; 0 uses the clock")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logCloser := middleware.InitLogger(cfg)
	defer func() { _ = logCloser.Close() }()

	ctx := context.Background()
	handle, err := store.Open(ctx, cfg)
	if err != nil {
		middleware.Logger.Error("Failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = handle.Close(ctx) }()

	middleware.Logger.Info("Seeding",
		slog.String("backend", handle.Backend),
		slog.Int("users", *numUsers),
		slog.Int("communities", *numCommunities),
		slog.Int("threads_per_user", *threads),
		slog.Int("depth", *depth),
		slog.Int("replies_per_post", *fanout),
	)

	seeder := seed.NewSeeder(service.NewEngine(handle.Stores, nil), seed.Options{
		Users:          *numUsers,
		Communities:    *numCommunities,
		ThreadsPerUser: *threads,
		Depth:          *depth,
		RepliesPerPost: *fanout,
		RandSeed:       *randSeed,
	})
	res, err := seeder.Run(ctx)
	if err != nil {
		middleware.Logger.Error("Seeding failed", slog.String("error", err.Error()))
		_ = handle.Close(ctx)
		os.Exit(1)
	}

	middleware.Logger.Info("Seeding complete",
		slog.Int("users", res.Users),
		slog.Int("communities", res.Communities),
		slog.Int("top_level", res.TopLevel),
		slog.Int("replies", res.Replies),
	)
}
