package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"gpconnect/internal/common"
	"gpconnect/internal/di"
)

func main() {
	log.Println("Starting GP-Connect server...")

	app, cleanup, err := di.InitializeApplication()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer cleanup()

	// The hub owns the subscription table; it runs for the lifetime of the
	// process and is stopped explicitly on shutdown.
	app.Hub.Start()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// The websocket endpoint authenticates inside the handler (token via
	// query param) and hijacks the connection, so it stays off the API
	// middleware chain.
	router.HandleFunc("/ws", app.WSHandler.ServeWS)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(common.LoggingMiddleware)
	api.Use(app.Auth.Handle)
	app.UserHandler.RegisterRoutes(api)
	app.CommunityHandler.RegisterRoutes(api)
	app.MessageHandler.RegisterRoutes(api)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{app.Config.Server.CORSOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         app.Config.Server.Host + ":" + app.Config.Server.Port,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  time.Duration(app.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(app.Config.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	app.Hub.Stop()

	log.Println("Server stopped")
}
