package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"pricescan/internal/api"
	pricecache "pricescan/internal/cache"
	"pricescan/internal/config"
	"pricescan/internal/pricing"
	"pricescan/internal/progress"
	"pricescan/internal/provider"
	"pricescan/internal/queue"
	"pricescan/internal/repository"
	"pricescan/internal/scheduler"
	"pricescan/internal/worker"
)

const groupTTL = 86400 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Initializing pricescan backend...")
	log.Printf("DB: %s", redactDatabaseURL(cfg.DatabaseURL))
	log.Printf("Redis: %s", cfg.RedisAddr)
	log.Printf("API Port: %d", cfg.APIPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable price store.
	repo, err := repository.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer repo.Close()

	if os.Getenv("SKIP_MIGRATION") == "true" {
		log.Println("Database Migration SKIPPED (SKIP_MIGRATION=true)")
	} else {
		log.Println("Running Database Migration...")
		if err := repo.Migrate("schema.sql"); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Database Migration Complete.")
	}

	// Cache, queue and group storage share one Redis. When Redis is not
	// reachable at startup the in-process twins take over; fine for a single
	// instance, required for none of the resolution tiers.
	var (
		priceCache pricing.Cache
		jobQueue   queue.Queue
		groups     queue.GroupStore
	)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	redisCache, err := pricecache.NewRedisCache(pingCtx, rdb, cfg.Cache.TTL)
	cancel()
	if err != nil {
		log.Printf("Redis unavailable (%v); using in-memory cache and queue", err)
		priceCache = pricecache.NewMemoryCache(cfg.Cache.TTL)
		jobQueue = queue.NewMemoryQueue(cfg.Queue.RemoveOnComplete)
		groups = queue.NewMemoryGroupStore(groupTTL)
	} else {
		priceCache = redisCache
		jobQueue = queue.NewRedisQueue(rdb, cfg.Queue.Name, cfg.Queue.RemoveOnComplete)
		groups = queue.NewRedisGroupStore(rdb, groupTTL)
	}

	// Rate-limited provider client; one reservoir process-wide.
	reservoir := provider.NewReservoir(cfg.Provider.MaxConcurrent, cfg.Provider.Reservoir, cfg.Provider.ReservoirWindow)
	client := provider.NewClient(provider.ClientOptions{
		APIKey:    cfg.Provider.APIKey,
		BaseURL:   cfg.Provider.BaseURL,
		Networks:  cfg.Provider.Networks,
		Reservoir: reservoir,
	})
	genesis := provider.NewGenesisDiscoverer(ctx, cfg.Provider.RPCURLs)

	resolver := pricing.NewResolver(priceCache, repo, client)
	sched := scheduler.New(genesis, jobQueue, groups)
	tracker := progress.NewTracker(jobQueue, groups)

	pool := worker.NewPool(worker.PoolOptions{
		Queue:          jobQueue,
		Resolver:       resolver,
		Store:          repo,
		Concurrency:    cfg.Worker.Concurrency,
		JobsPerSecond:  cfg.Worker.JobsPerSecond,
		PersistDerived: cfg.Backfill.PersistDerived,
	})
	pool.Start(ctx)

	srv := api.NewServer(cfg.APIPort, resolver, sched, tracker)
	if err := srv.Run(ctx); err != nil {
		log.Printf("API server error: %v", err)
	}

	stop()
	pool.Wait()
	log.Println("Shutdown complete.")
}

// redactDatabaseURL hides credentials in startup logs.
func redactDatabaseURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "(unparsable db url)"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.Redacted()
}
