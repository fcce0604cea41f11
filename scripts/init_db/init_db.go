package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "auv_user"),
		dbGetEnv("DB_PASSWORD", "auv_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "auv_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1Extensions(ctx, conn)
	step2TelemetryTable(ctx, conn)
	step3AlertTables(ctx, conn)
	step4ZonesTable(ctx, conn)
	step5Indexes(ctx, conn)
	step6Verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./scripts/seed")
}

func step1Extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	// TimescaleDB — required for the telemetry hypertable
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)
}

func step2TelemetryTable(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: telemetry table ─────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS telemetry (

			-- Vehicle clock — TimescaleDB partitions by this
			timestamp                TIMESTAMPTZ      NOT NULL,

			-- Server receipt time, separate from the vehicle clock
			received_at              TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			auv_id                   TEXT             NOT NULL,

			-- Position
			latitude                 DOUBLE PRECISION NOT NULL,
			longitude                DOUBLE PRECISION NOT NULL,
			depth_m                  DOUBLE PRECISION NOT NULL DEFAULT 0,
			speed                    DOUBLE PRECISION NOT NULL DEFAULT 0,
			heading                  DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Environment sensors; NULL when the section was omitted
			turbidity_ntu            DOUBLE PRECISION,
			sediment_mg_l            DOUBLE PRECISION,
			dissolved_oxygen_mg_l    DOUBLE PRECISION,
			temperature_c            DOUBLE PRECISION,

			-- Plume sensor
			plume_concentration_mg_l DOUBLE PRECISION,

			-- Battery
			battery_pct              DOUBLE PRECISION,
			battery_voltage          DOUBLE PRECISION,

			-- Original JSON payload, kept for replay and audits
			raw                      JSONB
		);
	`, "telemetry table created")

	// 7-day chunks; recent-data queries touch only the latest chunk
	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'telemetry',
			'timestamp',
			if_not_exists => TRUE
		);
	`, "telemetry converted to hypertable")
}

func step3AlertTables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: alerts + alert_rules tables ─────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS alerts (

			-- Event ids come from the pipeline so replays stay idempotent
			id          UUID             PRIMARY KEY,

			created_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			auv_id      TEXT             NOT NULL,
			rule_id     TEXT             NOT NULL,

			severity    TEXT             NOT NULL,
			title       TEXT             NOT NULL,
			message     TEXT             NOT NULL,

			-- Full alert event as emitted on the stream
			payload     JSONB,

			CONSTRAINT chk_severity CHECK (
				severity IN ('low', 'medium', 'high', 'critical')
			)
		);
	`, "alerts table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS alert_rules (

			id          TEXT             PRIMARY KEY,
			type        TEXT             NOT NULL,

			-- Rule definition as consumed by the engine
			config      JSONB            NOT NULL,

			active      BOOLEAN          NOT NULL DEFAULT true,
			created_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_rule_type CHECK (
				type IN ('threshold', 'proximity', 'zone_dwell')
			)
		);
	`, "alert_rules table created")
}

func step4ZonesTable(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: zones table ─────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS zones (

			id                TEXT    PRIMARY KEY,
			name              TEXT    NOT NULL,

			-- Categories the dwell rules bind to
			zone_type         TEXT    NOT NULL,

			-- GeoJSON Polygon; the pipeline compiles this at load time
			geom              JSONB   NOT NULL,

			-- 0 means the zone itself sets no dwell ceiling
			max_dwell_minutes INTEGER NOT NULL DEFAULT 0
		);
	`, "zones table created")
}

func step5Indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_telemetry_auv_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_telemetry_auv_time
				  ON telemetry (auv_id, timestamp DESC);`,
			why: "query: telemetry history for one AUV",
		},
		{
			name: "idx_alerts_auv",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_auv
				  ON alerts (auv_id, created_at DESC);`,
			why: "query: alerts for one AUV",
		},
		{
			name: "idx_alerts_rule",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_rule
				  ON alerts (rule_id, created_at DESC);`,
			why: "query: firing history for one rule",
		},
		{
			name: "idx_rules_active",
			sql: `CREATE INDEX IF NOT EXISTS idx_rules_active
				  ON alert_rules (created_at, id)
				  WHERE active;`,
			why: "query: active rules in load order (partial index)",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-30s ← %s", idx.name, idx.why),
		)
	}
}

func step6Verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: Verification ────────────────────────")

	tables := []string{"telemetry", "alerts", "alert_rules", "zones"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var hypertableName string
	err := conn.QueryRow(ctx, `
		SELECT hypertable_name
		FROM timescaledb_information.hypertables
		WHERE hypertable_name = 'telemetry'
	`).Scan(&hypertableName)
	if err != nil {
		log.Fatalf("telemetry is not a hypertable: %v", err)
	}
	fmt.Printf("  ✓ hypertable: %s (time partitioned)\n", hypertableName)

	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('telemetry', 'alerts', 'alert_rules')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// execOrFatal runs a SQL statement and prints the result or exits.
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
