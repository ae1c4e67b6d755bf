package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/dnldd/moodboard/service"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	moodboardCfg := service.MoodboardConfig{
		BackendURL:           cfg.BackendURL,
		Ticker:               cfg.Ticker,
		Sources:              cfg.Sources,
		RangeDays:            cfg.RangeDays,
		Padding:              cfg.Padding,
		ListenAddr:           cfg.ListenAddr,
		DBEndpoint:           cfg.DBEndpoint,
		DBUser:               cfg.DBUser,
		DBPass:               cfg.DBPass,
		JournalRetentionDays: cfg.JournalRetentionDays,
		Cancel:               cancel,
	}
	moodboard, err := service.NewMoodboard(&moodboardCfg)
	if err != nil {
		log.Printf("creating moodboard service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	moodboard.Run(ctx)
}
