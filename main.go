package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gotoplanb/todo-otel/db"
	"github.com/gotoplanb/todo-otel/handlers"
	"github.com/gotoplanb/todo-otel/notify"
	"github.com/gotoplanb/todo-otel/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file, using environment defaults")
	}

	ctx := context.Background()
	tp, err := tracing.Init(ctx, getenv("SERVICE_NAME", "todo-api"), getenv("OTLP_ENDPOINT", "localhost:4317"))
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	dbConn := initDB()
	defer dbConn.Close()

	mux := initHandlers(dbConn)
	server := &http.Server{
		Addr:    ":" + getenv("SERVER_PORT", "3000"),
		Handler: mux,
	}
	startServer(server)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Printf("Tracer shutdown failed: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func initDB() *sql.DB {
	driver := getenv("DB_DRIVER", "sqlite3")
	dsn := getenv("DATABASE_DSN", "todos.db")

	dbConn, err := db.Connect(driver, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Migrate(dbConn); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	return dbConn
}

func initHandlers(dbConn *sql.DB) *http.ServeMux {
	handler := &handlers.Handler{
		TodoRepo:    db.NewTodoRepository(dbConn),
		Notifier:    notify.NewMockNotificationService(),
		RateLimiter: handlers.NewRateLimiter(5, time.Second),
		WSHub:       handlers.NewWSHub(),
		JWTSecret:   os.Getenv("JWT_SECRET"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handler.ValidateRequest(handler.HandleHealth))
	mux.HandleFunc("/todos", handler.ValidateRequest(handler.RequireAuth(handler.HandleTodos)))
	mux.HandleFunc("/todos/", handler.ValidateRequest(handler.RequireAuth(handler.HandleTodoByID)))
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	return mux
}

func startServer(server *http.Server) {
	log.Printf("Starting todo server on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
