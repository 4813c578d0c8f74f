package main

import (
	"context"
	"log"

	"docqa/internal/activities"
	"docqa/internal/app"
	"docqa/internal/config"
	"docqa/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	app.SetupLogging(cfg.LogLevel)
	if !cfg.AsyncIngest() {
		log.Fatal("DOCQA_TEMPORAL_ADDRESS is required to run the ingestion worker")
	}
	if cfg.IndexBackend != "postgres" {
		log.Fatal("the ingestion worker needs DOCQA_INDEX_BACKEND=postgres so the API can search what it indexes")
	}
	a, err := app.NewWorker(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	w := worker.New(a.Temporal, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(a.Indexer))

	log.Printf("docqa worker listening on %s queue=%s embed_providers=%q", cfg.TemporalAddress, cfg.TemporalTaskQueue, cfg.EmbedProviders)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
