package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/noehblabla33-a11y/frigo/internal/cache"
	"github.com/noehblabla33-a11y/frigo/internal/config"
	"github.com/noehblabla33-a11y/frigo/internal/database"
	"github.com/noehblabla33-a11y/frigo/internal/engine"
	"github.com/noehblabla33-a11y/frigo/internal/gateway"
	"github.com/noehblabla33-a11y/frigo/internal/logging"
	"github.com/noehblabla33-a11y/frigo/internal/server"
)

const usage = `usage: frigo <command> [args]

commands:
  list                 show the shopping list (cache-first)
  refresh              force a fetch from the fridge service
  buy <id>             toggle an item's purchased flag
  qty <id> <amount>    set the purchased quantity for an item
  delete <id>          delete an item on the server
  sync                 push purchased items to the fridge service
  clear                wipe the local cache
  health               check the fridge service
  serve                run the presentation bridge daemon
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// Remote-facing commands need a fully specified target up front.
	// Cache-only commands still work without credentials.
	switch cmd {
	case "refresh", "delete", "sync", "health", "serve":
		if err := cfg.Validate(); err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open cache database: %v", err)
	}
	defer db.Close()

	store := cache.NewStore(db)
	gw := gateway.NewClient(cfg.APIURL, cfg.APIKey)
	eng := engine.New(gw, store, logger.With("component", "engine"))
	defer eng.Close()

	ctx := context.Background()

	switch cmd {
	case "list":
		snap, err := eng.GetList(ctx)
		if err != nil {
			log.Fatalf("load list: %v", err)
		}
		printSnapshot(snap)

	case "refresh":
		snap, err := eng.Refresh(ctx)
		if err != nil {
			// Forced refresh never falls back silently; say so, then
			// show the cached list if one exists.
			fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
			if has, hasErr := store.Exists(); hasErr == nil && has {
				fmt.Fprintln(os.Stderr, "showing cached data")
				if cached, cErr := eng.GetList(ctx); cErr == nil {
					printSnapshot(cached)
				}
			}
			os.Exit(1)
		}
		printSnapshot(snap)

	case "buy":
		id := parseID(os.Args[2:])
		if _, err := eng.GetList(ctx); err != nil {
			log.Fatalf("load list: %v", err)
		}
		snap, err := eng.TogglePurchased(id)
		if err != nil {
			log.Fatalf("toggle item %d: %v", id, err)
		}
		printSnapshot(snap)

	case "qty":
		if len(os.Args) < 4 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		id := parseID(os.Args[2:])
		amount, err := strconv.ParseFloat(os.Args[3], 64)
		if err != nil {
			log.Fatalf("invalid amount %q", os.Args[3])
		}
		if _, err := eng.GetList(ctx); err != nil {
			log.Fatalf("load list: %v", err)
		}
		snap, err := eng.SetPurchasedQuantity(id, amount)
		if err != nil {
			log.Fatalf("set quantity for item %d: %v", id, err)
		}
		printSnapshot(snap)

	case "delete":
		id := parseID(os.Args[2:])
		if _, err := eng.GetList(ctx); err != nil {
			log.Fatalf("load list: %v", err)
		}
		if err := eng.Delete(ctx, id); err != nil {
			log.Fatalf("delete item %d: %v", id, err)
		}
		fmt.Printf("deleted item %d\n", id)

	case "sync":
		if _, err := eng.GetList(ctx); err != nil {
			log.Fatalf("load list: %v", err)
		}
		ack, err := eng.Sync(ctx)
		if err != nil {
			log.Fatalf("sync: %v", err)
		}
		if ack.Message != "" {
			fmt.Println(ack.Message)
		}
		fmt.Printf("synced, %d item(s) modified on server\n", ack.ModifiedCount)

	case "clear":
		eng.Clear()
		fmt.Println("cache cleared")

	case "health":
		status, err := gw.CheckHealth(ctx)
		if err != nil {
			log.Fatalf("fridge service unreachable: %v", err)
		}
		fmt.Println("fridge service is up")
		for k, v := range status {
			fmt.Printf("  %s: %s\n", k, v)
		}

	case "serve":
		serve(cfg, eng, gw, logger)

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func serve(cfg *config.Config, eng *engine.Engine, gw *gateway.Client, logger *slog.Logger) {
	srv := server.New(eng, gw, logger)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Warm the state before clients connect; a failure here just means
	// clients start from an empty snapshot.
	if _, err := eng.GetList(context.Background()); err != nil {
		logger.Warn("initial load failed", "error", err)
	}

	go func() {
		fmt.Printf("frigo bridge running at http://localhost%s\n", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func parseID(args []string) int64 {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		log.Fatalf("invalid item id %q", args[0])
	}
	return id
}

func printSnapshot(snap engine.Snapshot) {
	if len(snap.Items) == 0 {
		fmt.Println("shopping list is empty")
		return
	}

	fmt.Printf("%-5s %-24s %10s %-8s %10s %8s  %s\n",
		"ID", "NAME", "REMAINING", "UNIT", "BOUGHT", "PRICE", "")
	for _, item := range snap.Items {
		mark := ""
		if item.Purchased {
			mark = "✔"
		}
		fmt.Printf("%-5d %-24s %10.2f %-8s %10.2f %8.2f  %s\n",
			item.ID, item.Name, item.RemainingQuantity, item.Unit,
			item.PurchasedQuantity, item.UnitPrice, mark)
	}
	fmt.Printf("\n%d to buy, %d purchased, estimated total %.2f\n",
		snap.RemainingCount, snap.PurchasedCount, snap.TotalEstimate)
}
