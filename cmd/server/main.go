package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/smartcity/fleet-tracker/internal/delivery/http"
	"github.com/smartcity/fleet-tracker/internal/repository/postgres"
	"github.com/smartcity/fleet-tracker/internal/service"
	"github.com/smartcity/fleet-tracker/internal/source"
	"github.com/smartcity/fleet-tracker/internal/stream"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Configuration
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Dependency Injection: Repositories
	var dataRepo service.DataRepository = postgres.NewMockRepository()
	if pool := connectPostgres(ctx, cfg.DatabaseURL); pool != nil {
		defer pool.Close()
		repo := postgres.NewPostgresRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			log.Printf("Warning: %v", err)
		}
		dataRepo = repo
	} else {
		log.Println("Running without track persistence")
	}

	redisClient := connectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Dependency Injection: Services
	hub := stream.NewHub(redisClient)
	defer hub.Close()

	cache, err := service.NewLabelCache(cfg.LabelCacheSize, cfg.LabelCacheTTL)
	if err != nil {
		log.Fatalf("Failed to create label cache: %v", err)
	}

	var strategies []service.LabelStrategy
	if cfg.GoogleMapsAPIKey != "" {
		strategies = append(strategies, service.NewGoogleGeocoder(cfg.GoogleMapsAPIKey, cfg.GeocodeTimeout))
	} else {
		log.Println("Warning: GOOGLE_MAPS_API_KEY not set, skipping Google geocoding")
	}
	strategies = append(strategies,
		service.NewNominatimGeocoder(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout),
		service.NewAreaApproximator("Metro Manila", service.MetroManilaAreas, service.DefaultAreaRadius),
	)

	resolver := service.NewLabelResolver(cache, strategies, dataRepo, cfg.LabelCoalesce)
	if n, err := resolver.Warm(ctx, cfg.LabelCacheSize); err != nil {
		log.Printf("Warning: could not warm label cache: %v", err)
	} else if n > 0 {
		log.Printf("Loaded %d cached labels", n)
	}

	fleetSvc := service.NewFleetService(service.NewTracker(), resolver, dataRepo, hub, cfg.GeocodeTimeout+5*time.Second)

	// Location stream
	runCtx, stopSources := context.WithCancel(context.Background())
	sourceDone := make(chan struct{})
	if redisClient != nil {
		src := source.NewRedisSource(redisClient, cfg.LocationChannel, fleetSvc)
		go func() {
			defer close(sourceDone)
			if err := src.Run(runCtx); err != nil {
				log.Printf("Location source stopped: %v", err)
			}
		}()
	} else {
		close(sourceDone)
		log.Println("REDIS_ADDR not set, accepting locations over HTTP only")
	}

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Fleet Tracker API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, fleetSvc, dataRepo, hub)
	stream.RegisterRoutes(app, hub)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s (%s)", cfg.Port, cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	stopSources()
	<-sourceDone
	fleetSvc.WaitBackground()
	log.Println("Server exited gracefully")
}

// connectPostgres returns nil when no database is configured or reachable
func connectPostgres(ctx context.Context, url string) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		log.Printf("Warning: Could not connect to database: %v", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		log.Printf("Warning: Could not reach database: %v", err)
		pool.Close()
		return nil
	}
	log.Println("Connected to PostgreSQL")
	return pool
}

// connectRedis returns nil when no Redis is configured or reachable
func connectRedis(ctx context.Context, addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Could not connect to Redis: %v", err)
		client.Close()
		return nil
	}
	log.Println("Connected to Redis")
	return client
}
