package main

import (
	"context"
	"log"
	"net/http"

	"docqa/internal/app"
	"docqa/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	app.SetupLogging(cfg.LogLevel)
	a, err := app.New(context.Background(), cfg, app.WithTemporal())
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	h := a.API()
	log.Printf("docqa api listening on %s index=%s memory=%s async=%t llm_providers=%q embed_providers=%q",
		cfg.APIAddr, cfg.IndexBackend, cfg.MemoryBackend, a.Starter != nil, cfg.LLMProviders, cfg.EmbedProviders)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
