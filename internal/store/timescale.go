package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"auv-monitor/ingestion/internal/config"
	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/geo"
)

// TimescaleStore is the time-series storage collaborator: bulk
// telemetry inserts, alert persistence, and the zone/rule tables.
type TimescaleStore struct {
	pool *pgxpool.Pool
}

func NewTimescaleStore(ctx context.Context, cfg *config.Config) (*TimescaleStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &TimescaleStore{pool: pool}, nil
}

func (s *TimescaleStore) Close() {
	s.pool.Close()
}

func (s *TimescaleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var telemetryColumns = []string{
	"timestamp",
	"received_at",
	"auv_id",
	"latitude",
	"longitude",
	"depth_m",
	"speed",
	"heading",
	"turbidity_ntu",
	"sediment_mg_l",
	"dissolved_oxygen_mg_l",
	"temperature_c",
	"plume_concentration_mg_l",
	"battery_pct",
	"battery_voltage",
	"raw",
}

// BatchInsert writes one telemetry batch in a single COPY. Omitted
// sensor sections become NULLs.
func (s *TimescaleStore) BatchInsert(ctx context.Context, recs []*domain.TelemetryRecord) error {
	if len(recs) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(recs))
	for i, r := range recs {
		var turbidity, sediment, oxygen, temperature interface{}
		if r.Env != nil {
			turbidity = r.Env.TurbidityNTU
			sediment = r.Env.SedimentMgL
			oxygen = r.Env.DissolvedOxygenMgL
			temperature = r.Env.TemperatureC
		}
		var plume interface{}
		if r.Plume != nil {
			plume = r.Plume.ConcentrationMgL
		}
		var batteryPct, batteryVoltage interface{}
		if r.Battery != nil {
			batteryPct = r.Battery.LevelPct
			batteryVoltage = r.Battery.VoltageV
		}
		rows[i] = []interface{}{
			r.Timestamp,
			r.ReceivedAt,
			r.AUVID,
			r.Position.Lat,
			r.Position.Lng,
			r.Position.DepthM,
			r.Position.Speed,
			r.Position.Heading,
			turbidity,
			sediment,
			oxygen,
			temperature,
			plume,
			batteryPct,
			batteryVoltage,
			string(r.Raw),
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"telemetry"},
		telemetryColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(recs), err)
	}

	return nil
}

// InsertAlert persists one alert event.
func (s *TimescaleStore) InsertAlert(ctx context.Context, ev *domain.AlertEvent) error {
	query := `
		INSERT INTO alerts
			(id, created_at, auv_id, rule_id, severity, title, message, payload)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}
	_, err = s.pool.Exec(
		ctx,
		query,
		ev.ID,
		ev.Timestamp,
		ev.AUVID,
		ev.RuleID,
		string(ev.Severity),
		ev.Title,
		ev.Message,
		payload,
	)
	return err
}

// LoadRules returns the active alert rule definitions for the next
// evaluation epoch.
func (s *TimescaleStore) LoadRules(ctx context.Context) ([]domain.AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT config FROM alert_rules WHERE active ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query alert_rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		var config []byte
		if err := rows.Scan(&config); err != nil {
			return nil, fmt.Errorf("scan alert_rules row: %w", err)
		}
		var rule domain.AlertRule
		if err := json.Unmarshal(config, &rule); err != nil {
			return nil, fmt.Errorf("decode rule config: %w", err)
		}
		rule.Active = true
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CurrentZones implements geo.ZoneSource.
func (s *TimescaleStore) CurrentZones(ctx context.Context) ([]geo.ZoneRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, zone_type, geom, max_dwell_minutes FROM zones`)
	if err != nil {
		return nil, fmt.Errorf("query zones: %w", err)
	}
	defer rows.Close()

	var recs []geo.ZoneRecord
	for rows.Next() {
		var rec geo.ZoneRecord
		var geom string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.ZoneType, &geom, &rec.MaxDwellMinutes); err != nil {
			return nil, fmt.Errorf("scan zones row: %w", err)
		}
		rec.Geometry = []byte(geom)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
