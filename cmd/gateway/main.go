package main

import (
	"fmt"
	"log"
	"net/http"

	"orderhub/internal/config"
	"orderhub/internal/gateway"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	r, err := gateway.NewRouter(cfg)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Starting API gateway on port %d", cfg.Port)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
