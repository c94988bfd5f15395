package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/ayna/backend/src/config"
	"github.com/username/ayna/backend/src/database"
	"github.com/username/ayna/backend/src/handlers"
	"github.com/username/ayna/backend/src/ledger"
	"github.com/username/ayna/backend/src/logger"
	"github.com/username/ayna/backend/src/security"
	"github.com/username/ayna/backend/src/services"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":    true,
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("AYNA backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	reportCache := cache.New(config.Cfg.CacheExpiration, config.Cfg.CacheCleanupInterval)

	ledgerEngine := ledger.NewEngine(database.DB)

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	financeService := services.NewFinanceService(database.DB, ledgerEngine, reportCache)
	subscriptionService := services.NewSubscriptionService(database.DB, reportCache)
	eventService := services.NewEventService(database.DB)

	materializer := services.NewMaterializer(database.DB, ledgerEngine)
	go materializer.Start(context.Background(), config.Cfg.MaterializerInterval)

	authMiddleware := handlers.NewAuthMiddleware(authService)
	txHandler := handlers.NewTransactionHandler(financeService)
	recurringHandler := handlers.NewRecurringHandler(financeService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	eventHandler := handlers.NewEventHandler(eventService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "AYNA Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)

			r.Post("/transactions", txHandler.HandleCreateTransaction)
			r.Get("/transactions", txHandler.HandleListTransactions)
			r.Get("/transactions/categories", txHandler.HandleGetCategories)
			r.Get("/transactions/summary", txHandler.HandleGetSummary)
			r.Put("/transactions/{id}", txHandler.HandleUpdateTransaction)
			r.Delete("/transactions/{id}", txHandler.HandleDeleteTransaction)

			r.Post("/transactions/recurring", recurringHandler.HandleCreateRule)
			r.Get("/transactions/recurring", recurringHandler.HandleListRules)
			r.Put("/transactions/recurring/{id}", recurringHandler.HandleUpdateRule)
			r.Delete("/transactions/recurring/{id}", recurringHandler.HandleDeleteRule)

			r.Post("/subscriptions", subscriptionHandler.HandleCreateSubscription)
			r.Get("/subscriptions", subscriptionHandler.HandleListSubscriptions)
			r.Put("/subscriptions/{id}", subscriptionHandler.HandleUpdateSubscription)
			r.Delete("/subscriptions/{id}", subscriptionHandler.HandleCancelSubscription)
			r.Get("/subscriptions/daily-spending", subscriptionHandler.HandleGetDailySpending)

			r.Get("/events", eventHandler.HandleListOccurrences)
			r.Get("/events/upcoming", eventHandler.HandleUpcoming)
			r.Get("/events/subscriptions", eventHandler.HandleBillingOccurrences)
			r.Post("/events", eventHandler.HandleCreateEvent)
			r.Put("/events/{id}", eventHandler.HandleUpdateEvent)
			r.Delete("/events/{id}", eventHandler.HandleDeleteEvent)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
