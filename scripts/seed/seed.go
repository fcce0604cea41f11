package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	ctx := context.Background()

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		seedGetEnv("DB_USER", "auv_user"),
		seedGetEnv("DB_PASSWORD", "auv_password"),
		seedGetEnv("DB_HOST", "localhost"),
		seedGetEnv("DB_PORT", "5432"),
		seedGetEnv("DB_NAME", "auv_monitor"),
	)

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nRun init_db first:\n  go run ./scripts/init_db", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1AlertRules(ctx, conn)
	step2Zones(ctx, conn)
	step3APIKeys(ctx)
	step4Verify(ctx, conn)

	fmt.Println("\n✅ Seed data created successfully")
	fmt.Println("   Run next: go run ./cmd/auvmond serve")
}

// ruleConfig mirrors the JSON shape the engine loads from alert_rules.
type ruleConfig struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	Path            string  `json:"path"`
	Operator        string  `json:"operator"`
	Value           float64 `json:"value"`
	Severity        string  `json:"severity"`
	DedupeWindowSec int     `json:"dedupe_window_sec"`
	ZoneType        string  `json:"zone_type,omitempty"`
	MaxMinutes      int     `json:"max_minutes,omitempty"`
}

func step1AlertRules(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Alert rules ─────────────────────────")

	rules := []ruleConfig{
		{
			ID: "RULE-SEDIMENT-01", Type: "threshold",
			Path: "env.sediment_mg_l", Operator: ">", Value: 25,
			Severity: "high", DedupeWindowSec: 300,
		},
		{
			ID: "RULE-DO-01", Type: "threshold",
			Path: "env.dissolved_oxygen_mg_l", Operator: "<", Value: 6.0,
			Severity: "medium", DedupeWindowSec: 300,
		},
		{
			ID: "RULE-BATT-01", Type: "threshold",
			Path: "battery.level_pct", Operator: "<", Value: 30,
			Severity: "medium", DedupeWindowSec: 600,
		},
		{
			ID: "RULE-SPECIES-01", Type: "proximity",
			Path: "species_detections[].distance_m", Operator: "<", Value: 150,
			Severity: "high", DedupeWindowSec: 600,
		},
		{
			ID: "RULE-ZONE-01", Type: "zone_dwell",
			Severity: "medium", DedupeWindowSec: 1800,
			ZoneType: "sensitive", MaxMinutes: 60,
		},
	}

	for _, r := range rules {
		config, err := json.Marshal(r)
		if err != nil {
			log.Fatalf("Failed to marshal rule %s: %v", r.ID, err)
		}
		_, err = conn.Exec(ctx, `
			INSERT INTO alert_rules (id, type, config, active)
			VALUES ($1, $2, $3, true)
			ON CONFLICT (id) DO UPDATE SET
				type = EXCLUDED.type,
				config = EXCLUDED.config,
				active = true
		`, r.ID, r.Type, config)
		if err != nil {
			log.Fatalf("Failed to seed rule %s: %v", r.ID, err)
		}
		fmt.Printf("  ✓ %-20s %s\n", r.ID, r.Type)
	}
}

func step2Zones(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Zones ───────────────────────────────")

	zones := []struct {
		id       string
		name     string
		zoneType string
		geom     string
		maxDwell int
	}{
		{
			id:       "ZONE-CCZ-A",
			name:     "CCZ Sensitive Area A",
			zoneType: "sensitive",
			geom: `{"type":"Polygon","coordinates":[[
				[-140.0,10.0],[-139.0,10.0],[-139.0,11.0],[-140.0,11.0],[-140.0,10.0]
			]]}`,
			maxDwell: 60,
		},
		{
			id:       "ZONE-NOGO-1",
			name:     "Restricted No-Go",
			zoneType: "restricted",
			geom: `{"type":"Polygon","coordinates":[[
				[-145.0,8.0],[-144.0,8.0],[-144.0,9.0],[-145.0,9.0],[-145.0,8.0]
			]]}`,
			maxDwell: 0,
		},
	}

	for _, z := range zones {
		_, err := conn.Exec(ctx, `
			INSERT INTO zones (id, name, zone_type, geom, max_dwell_minutes)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				zone_type = EXCLUDED.zone_type,
				geom = EXCLUDED.geom,
				max_dwell_minutes = EXCLUDED.max_dwell_minutes
		`, z.id, z.name, z.zoneType, z.geom, z.maxDwell)
		if err != nil {
			log.Fatalf("Failed to seed zone %s: %v", z.id, err)
		}
		fmt.Printf("  ✓ %-14s %s (%s)\n", z.id, z.name, z.zoneType)
	}
}

func step3APIKeys(ctx context.Context) {
	fmt.Println("\n── Step 3: API keys (Redis) ────────────────────")

	addr := seedGetEnv("REDIS_ADDR", "localhost:6379")
	if addr == "" {
		fmt.Println("  – REDIS_ADDR empty, skipping (static VALID_API_KEYS only)")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: seedGetEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}

	// Key pattern: auv:auth:{api_key} → auv_id. This is what the
	// authenticator looks up at Level 2. TTL 0 means permanent.
	apiKeys := map[string]string{
		"auv:auth:auv_explorer_01_key": "AUV-EXPLORER-01",
		"auv:auth:auv_surveyor_02_key": "AUV-SURVEYOR-02",
		"auv:auth:test_key":            "AUV-TEST",
	}

	for key, auvID := range apiKeys {
		if err := client.Set(ctx, key, auvID, 0).Err(); err != nil {
			log.Fatalf("Failed to set key %s: %v", key, err)
		}
		fmt.Printf("  ✓ %-35s → %s\n", key, auvID)
	}
}

func step4Verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Verification ────────────────────────")

	var ruleCount int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM alert_rules WHERE active`).Scan(&ruleCount); err != nil {
		log.Fatalf("Rule verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d active alert rules\n", ruleCount)

	var zoneCount int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM zones`).Scan(&zoneCount); err != nil {
		log.Fatalf("Zone verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d zones\n", zoneCount)
}

func seedGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
