package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"game-score-system/cache"
	"game-score-system/db"
	"game-score-system/handlers"
	"game-score-system/middleware"
	"game-score-system/models"
	"game-score-system/services"
	"game-score-system/utils"
	"game-score-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout: 30 * time.Second,
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	gdb, err := db.Connect(dsn)
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	retrier := db.NewRetrier(gdb)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// First touch after deploy often lands on a cold database; go
	// through the retrier so boot rides out the wake instead of dying.
	if err := retrier.Run(ctx, func(tx *gorm.DB) error {
		return tx.Exec("SELECT 1").Error
	}); err != nil {
		log.Fatal("database unreachable at startup:", err)
	}

	if err := gdb.AutoMigrate(
		&models.Game{},
		&models.Content{},
		&models.ContentGame{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// The score log is range-partitioned; AutoMigrate cannot express
	// that, so the partition manager owns its DDL.
	partitions := db.NewPartitionManager(gdb)
	if err := partitions.EnsureSchema(); err != nil {
		log.Fatal("failed to create score log schema:", err)
	}
	if err := partitions.EnsureCurrentAndNext(); err != nil {
		log.Fatal("failed to provision score log partitions:", err)
	}

	stage := os.Getenv("STAGE")
	if stage == "" {
		stage = "dev"
	}
	cacheTable := os.Getenv("CACHE_TABLE_NAME")
	if cacheTable == "" {
		cacheTable = "game-score-cache-" + stage
	}

	memoryTier := cache.NewMemoryTier(cache.DefaultMemoryMaxEntries, cache.DefaultMemoryMaxTTL)

	var durableTier cache.Tier
	if dynamoClient, err := utils.NewDynamoClient(ctx); err != nil {
		log.Printf("⚠️  DynamoDB client init failed, cache runs without durable tier: %v", err)
	} else {
		durableTier = cache.NewDynamoTier(ctx, dynamoClient, cacheTable)
	}

	var fallbackTier cache.Tier
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
		fallbackTier = cache.NewRedisTier(ctx, redisAddr, os.Getenv("REDIS_PASSWORD"), redisDB)
	}

	hybridCache := cache.NewHybridCache(memoryTier, durableTier, fallbackTier)

	scoreService := services.NewScoreLogService(gdb, retrier, partitions, hybridCache)
	boardService := services.NewLeaderboardService(gdb, retrier, hybridCache)
	gameService := services.NewGameService(gdb, retrier, hybridCache)
	contentService := services.NewContentService(gdb, retrier, hybridCache)
	cacheService := services.NewCacheService(hybridCache)
	dbService := services.NewDatabaseService(gdb, retrier)

	scoreService.StartPartitionScheduler()
	go workers.PollExpiredEntries(ctx, memoryTier, time.Minute)

	handlers.SetupScoreRoutes(app, scoreService, boardService)
	handlers.SetupGameRoutes(app, gameService)
	handlers.SetupContentRoutes(app, contentService)
	handlers.SetupOpsRoutes(app, cacheService, dbService)

	go func() {
		if err := app.Listen(":5200"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5200")
	log.Println("✅ Score log partitions provisioned (current + next month)")
	log.Println("✅ Memory cache janitor running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
