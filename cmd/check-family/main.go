// check-family prints a family document and the status derived from it.
//
//	go run ./cmd/check-family <family_id>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	rediscommon "wisefido-survival/internal/common/redis"
	"wisefido-survival/internal/config"
	"wisefido-survival/internal/evaluator"
	"wisefido-survival/internal/models"
	"wisefido-survival/internal/store"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: check-family <family_id>")
		os.Exit(2)
	}
	familyID := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := rediscommon.NewRedisClient(&cfg.Redis)
	defer client.Close()
	if err := rediscommon.Ping(ctx, client); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	ds := store.NewRedisDocumentStore(client, cfg.Survival.Document.KeyPrefix, cfg.Survival.Document.ChangedSuffix, zap.NewNop())
	doc, err := ds.GetDocument(ctx, familyID)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", ds.DocumentKey(familyID), err)
	}

	now := time.Now().In(cfg.Location())
	snapshot := models.ParseSnapshot(familyID, doc)
	status := evaluator.Calculate(snapshot, now)

	fmt.Println("=== document", ds.DocumentKey(familyID))
	printJSON(doc)
	fmt.Println("=== snapshot")
	printJSON(snapshot)
	fmt.Println("=== status at", now.Format(time.RFC3339))
	printJSON(status)
	fmt.Printf("\n%s: %s\n", status.Level, status.Message)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("(unprintable: %v)\n", err)
		return
	}
	fmt.Println(string(out))
}
