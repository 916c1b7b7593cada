package app

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conference-backend/internal/db"
	"conference-backend/internal/handlers"
	"conference-backend/internal/models"
	"conference-backend/internal/services"
	"conference-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func Run() {
	// Load Env
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Init DB
	connString := utils.GetEnv("DATABASE_URL", "")
	if connString == "" {
		// Fallback to individual vars
		connString = "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
			utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
			utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
			utils.GetEnv("POSTGRES_DB", "conferencedb") + "?sslmode=disable"
	}

	if err := db.InitDB(connString); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseDB()

	if err := db.Migrate(context.Background(), connString); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Services
	userService := services.NewUserService()
	roomService := services.NewRoomService()
	sessionService := services.NewSessionService()

	// Presence is process-local; a restart loses it and clients rejoin.
	tracker := handlers.NewPresenceTracker()

	// Cleanup sweeper
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	cleanup := services.NewCleanupService(
		utils.GetEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),
		utils.GetEnvDuration("ROOM_IDLE_THRESHOLD", 24*time.Hour),
	)
	cleanup.Start(cleanupCtx)

	// Fiber App
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     utils.GetEnv("CLIENT_URL", "http://localhost:3000"),
		AllowMethods:     "GET,POST,PUT,DELETE",
		AllowCredentials: true,
	}))

	// Routes
	api := app.Group("/api")

	// Public Routes
	api.Post("/auth/register", func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if req.Name == "" || req.Email == "" || req.Password == "" {
			return c.Status(400).JSON(fiber.Map{"error": "name, email and password are required"})
		}
		res, err := userService.Register(c.Context(), req)
		if err != nil {
			if errors.Is(err, services.ErrUserExists) {
				return c.Status(400).JSON(fiber.Map{"error": "user already exists"})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(res)
	})

	api.Post("/auth/login", func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		res, err := userService.Login(c.Context(), req)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid credentials"})
		}
		return c.JSON(res)
	})

	api.Get("/auth/user", handlers.AuthMiddleware, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		user, err := userService.GetUser(c.Context(), userID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "user not found"})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(user)
	})

	// Room Directory
	api.Get("/rooms", handlers.OptionalAuthMiddleware, func(c *fiber.Ctx) error {
		// Authenticated callers also see private rooms.
		_, authed := c.Locals("user_id").(string)
		rooms, err := roomService.ListRooms(c.Context(), authed)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to fetch rooms"})
		}
		return c.JSON(rooms)
	})

	api.Post("/rooms", handlers.AuthMiddleware, func(c *fiber.Ctx) error {
		var req models.CreateRoomRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if req.Name == "" {
			return c.Status(400).JSON(fiber.Map{"error": "room name is required"})
		}
		room, err := roomService.CreateRoom(c.Context(), req.Name, req.IsPrivate)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(room)
	})

	api.Get("/rooms/:id", func(c *fiber.Ctx) error {
		room, err := roomService.GetRoomByID(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, services.ErrRoomNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "room not found"})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(room)
	})

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// WebSocket Route
	// Note: Middleware order matters. The upgrade check runs first; auth is
	// optional so socket-only participants can connect.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.OptionalAuthMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(tracker, sessionService))

	// Start Server
	port := utils.GetEnv("PORT", "5000")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Println("Gracefully shutting down...")
	stopCleanup()
	_ = app.Shutdown()
	log.Println("Server shutdown complete")
}
