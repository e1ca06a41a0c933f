package main

import (
	"log"

	"github.com/kataras/iris/v12"

	"github.com/example/flashsale/internal/config"
	"github.com/example/flashsale/internal/server"
)

func main() {
	cfg := config.FromEnv()

	app := iris.New()
	server.RegisterRoutes(app, cfg)

	addr := cfg.Server.Addr()
	log.Printf("flash sale api listening on %s", addr)
	if err := app.Run(iris.Addr(addr)); err != nil {
		log.Fatalf("failed to run web server: %v", err)
	}
}
