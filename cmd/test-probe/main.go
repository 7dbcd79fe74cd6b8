package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/tracking"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🔍 Campaign Verification Service - Probe Connectivity Test")
	fmt.Println("==========================================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if len(os.Args) < 2 {
		log.Fatal("Usage: test-probe <story-id>")
	}
	storyID := os.Args[1]

	prober := tracking.NewInstagramProber(cfg)
	if !prober.IsEnabled() {
		fmt.Println("⚠️  Prober DISABLED (missing INSTAGRAM_ACCESS_TOKEN)")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("🔸 Probing story %s... ", storyID)
	result, err := prober.CheckStory(ctx, storyID, "")
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return
	}

	fmt.Printf("✅ SUCCESS\n")
	fmt.Printf("   📝 Outcome: %s\n", result.Outcome)
	fmt.Printf("   📈 Reach: %d\n", result.Reach)
}
