package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mmuslimabdulj/goat-grab/internal/backend"
	"github.com/mmuslimabdulj/goat-grab/internal/config"
	httpHandler "github.com/mmuslimabdulj/goat-grab/internal/delivery/http"
	"github.com/mmuslimabdulj/goat-grab/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-grab/internal/domain"
	"github.com/mmuslimabdulj/goat-grab/internal/middleware"
	"github.com/mmuslimabdulj/goat-grab/internal/usecase"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	// Reload config after loading .env
	config.AppConfig = config.LoadFromEnv()
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.Silent() {
		log.SetOutput(io.Discard)
	}

	// Initialize dependencies
	client := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.BackendTimeout,
	}, nil)

	hub := ws.NewHub()
	go hub.Run()

	sessions := usecase.NewSessionManager(client, cfg.AlertTTL, cfg.SessionTTL)
	sessions.OnCreate(func(id string, f *usecase.FormController) {
		f.OnChange(func(e domain.Event) { hub.Publish(id, e) })
	})

	limiters := middleware.NewLimiters(cfg.RateLimitAPI, cfg.RateLimitWS, cfg.RateLimitSubmit)
	handler := httpHandler.NewHandler(sessions, hub, cfg.AllowedOrigins)

	// Setup routes
	mux := http.NewServeMux()

	// Serve static files
	fs := http.FileServer(http.Dir("./static"))
	mux.Handle("/static/", middleware.RateLimitMiddleware(limiters.API)(http.StripPrefix("/static/", fs)))

	// Page routes
	mux.HandleFunc("/", handler.HandleHome)
	mux.HandleFunc("/api/health", handler.HandleHealth)

	// WebSocket route with rate limiting
	mux.HandleFunc("/ws", middleware.RateLimitFunc(limiters.WebSocket, handler.HandleWebSocket))

	// API routes with rate limiting
	mux.HandleFunc("/api/state", middleware.RateLimitFunc(limiters.API, handler.HandleState))
	mux.HandleFunc("/api/input", middleware.RateLimitFunc(limiters.API, handler.HandleInput))
	mux.HandleFunc("/api/reset", middleware.RateLimitFunc(limiters.API, handler.HandleReset))
	mux.HandleFunc("/api/alert/dismiss", middleware.RateLimitFunc(limiters.API, handler.HandleDismissAlert))
	mux.HandleFunc("/api/submit", middleware.RateLimitFunc(limiters.Submit, handler.HandleSubmit))

	// Apply security headers middleware to all requests
	securedHandler := middleware.SecurityHeaders(mux)

	// Submissions hold the response open for the whole backend call
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      securedHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.BackendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("GOAT grab running at http://localhost:%s backend=%s", cfg.Port, client.BaseURL())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BackendTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	hub.Stop()
	sessions.Close()
	limiters.Stop()

	log.Println("Server exited gracefully")
}
