package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"clubhouse/internal/attendance"
	"clubhouse/internal/config"
	"clubhouse/internal/queue"
	"clubhouse/internal/store"
)

// Worker consumes recorded check-in messages and refreshes per-meeting
// present/late rollups. Losing a message only stales a summary; the next
// check-in for the same meeting repairs it.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "clubhouse:checkins")
	}

	repo := attendance.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "checkin" {
			continue
		}

		meeting, err := strconv.Atoi(string(msg.Body))
		if err != nil || meeting <= 0 {
			log.Printf("skipping malformed rollup message %q", string(msg.Body))
			continue
		}

		if err := repo.RefreshSummary(ctx, meeting); err != nil {
			log.Printf("summary refresh for meeting %d failed: %v", meeting, err)
			continue
		}
		log.Printf("summary refreshed for meeting %d", meeting)
	}

	log.Println("worker stopped")
}
