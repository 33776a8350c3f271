package main

import (
	"log"

	"github.com/jarvault/jarvault/core/gateway"
	"github.com/jarvault/jarvault/core/infra/buildinfo"
	"github.com/jarvault/jarvault/core/infra/config"
)

func main() {
	log.Println("jarvault gateway starting...")
	buildinfo.Log("jarvault-gateway")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := gateway.Run(cfg); err != nil {
		log.Fatalf("gateway error: %v", err)
	}
}
