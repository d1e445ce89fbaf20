// Package main runs the Nexa backend HTTP server.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/nexahq/nexa-backend/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := runtime.NewApplication()
	if err != nil {
		log.Fatalf("failed to initialise application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	log.Println("shutting down...")
	if err := app.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("server stopped")
}
