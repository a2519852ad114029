package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ACCIDENT_DETECTOR/go-backend/internal/config"
	"ACCIDENT_DETECTOR/go-backend/internal/database"
	"ACCIDENT_DETECTOR/go-backend/internal/handlers"
	"ACCIDENT_DETECTOR/go-backend/internal/pipeline"
	"ACCIDENT_DETECTOR/go-backend/internal/realtime"
	"ACCIDENT_DETECTOR/go-backend/internal/services"
	"ACCIDENT_DETECTOR/go-backend/internal/storage"
)

var httpServer *http.Server

func main() {
	httpPort := flag.String("http-port", "", "HTTP port (overrides HTTP_PORT)")
	modelURL := flag.String("model-url", "", "Model service URL (overrides MODEL_SERVICE_URL)")
	flag.Parse()

	cfg := config.LoadConfig()
	if *httpPort != "" {
		cfg.HTTPPort = *httpPort
	}
	if *modelURL != "" {
		cfg.ModelServiceURL = *modelURL
	}

	log.Println("Starting...")
	log.Printf("HTTP port: %s", cfg.HTTPPort)
	log.Printf("Model service: %s", cfg.ModelServiceURL)
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Database: %s", cfg.DSNForLog())

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// База данных и миграции
	if err := database.InitDB(cfg.DSN()); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	// Выбор классификатора — один раз на старте
	classifier := selectClassifier(cfg)
	gateway := services.NewInferenceGateway(classifier, cfg.PoolSize, cfg.MaxPredictionTime)

	metrics := services.GetMetrics()
	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry)
	store := storage.NewDetectionStore(database.DB)

	detection := pipeline.NewDetectionPipeline(gateway, store, broadcaster, metrics,
		cfg.AlertThreshold, cfg.PersistenceThreshold)

	wsServer := realtime.NewServer(registry, detection, metrics,
		cfg.FrameInterval, cfg.IdleTimeout, cfg.MaxMessageSizeMB)

	api := handlers.NewAPI(database.DB, store, detection, registry, metrics, gateway, cfg.CORSOrigins)

	log.Println("Starting HTTP server...")
	go startHTTPServer(cfg.HTTPPort, wsServer, api)

	// Ждём сигнала
	<-done
	log.Println("Shutting down...")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		log.Println("Stopping HTTP server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down HTTP server: %v", err)
		} else {
			log.Println("HTTP server gracefully stopped")
		}
	}

	log.Println("Draining inference pool...")
	if err := gateway.DrainAndClose(10 * time.Second); err != nil {
		log.Printf("Error closing classifier: %v", err)
	}

	log.Println("Closing WebSocket connections...")
	registry.CloseAll()
	log.Println("All WebSocket connections closed...")

	log.Println("Goodbye!")
}

// selectClassifier подключает настоящую модель, а при её недоступности
// переходит в деградированный режим вместо падения сервиса.
func selectClassifier(cfg *config.Config) services.Classifier {
	classifier, err := services.NewGRPCClassifier(cfg.ModelServiceURL)
	if err == nil {
		return classifier
	}

	log.Printf("Model service unavailable: %v", err)
	if cfg.FallbackHeuristic {
		log.Println("Falling back to motion heuristic classifier")
		return services.NewHeuristicClassifier()
	}
	log.Println("Running degraded: all frames will report model_not_loaded")
	return services.StubClassifier{}
}

func startHTTPServer(httpPort string, wsServer *realtime.Server, api *handlers.API) {
	port := httpPort
	if len(port) > 0 && port[0] == ':' {
		port = port[1:]
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/ws", wsServer.HandleWS)

	mux.HandleFunc("/api/detect", api.Detect)
	mux.HandleFunc("/api/alerts/recent", api.RecentAlerts)
	mux.HandleFunc("/api/alerts/resolve", api.ResolveAlert)
	mux.HandleFunc("/api/auth/register", api.Register)
	mux.HandleFunc("/api/auth/login", api.Login)
	mux.HandleFunc("/api/auth/logout", api.Logout)
	mux.HandleFunc("/api/auth/me", api.GetCurrentUser)
	mux.HandleFunc("/api/health", api.Health)
	mux.HandleFunc("/api/metrics", api.MetricsHandler)

	httpServer = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("HTTP server listening on port %s", port)
	log.Printf("WebSocket:  ws://localhost:%s/ws", port)
	log.Printf("REST API:   http://localhost:%s/api/*", port)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to serve HTTP: %v", err)
	}
}
