package influx

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

const measurement = "pool_history"

// Config holds the InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Store keeps pool history in an InfluxDB v2 bucket. Decimal fields are
// written as strings so no precision is lost.
type Store struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	org      string
	bucket   string
}

func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx url, org and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx health: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influx not healthy: %+v", health)
	}

	return &Store{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		org:      cfg.Org,
		bucket:   cfg.Bucket,
	}, nil
}

func (s *Store) Close() {
	s.client.Close()
}

// AppendPoint writes one recorded point.
func (s *Store) AppendPoint(ctx context.Context, pool string, point model.HistoricalDataPoint, granularity model.Granularity) error {
	if err := s.writeAPI.WritePoint(ctx, toPoint(pool, point, granularity)); err != nil {
		return fmt.Errorf("write influx point: %w", err)
	}
	return nil
}

// QueryWindow returns recorded points with start <= timestamp <= end.
func (s *Store) QueryWindow(ctx context.Context, pool string, granularity model.Granularity, start, end time.Time) ([]model.HistoricalDataPoint, error) {
	query := windowQuery(s.bucket, pool, granularity, start, end)
	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query influx: %w", err)
	}
	defer result.Close()

	out := make([]model.HistoricalDataPoint, 0)
	for result.Next() {
		record := result.Record()
		point, err := fromValues(record.Time(), record.Values())
		if err != nil {
			return nil, err
		}
		out = append(out, point)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("read influx result: %w", result.Err())
	}
	return out, nil
}

// Prune deletes points older than before. InfluxDB does not report how
// many rows a delete removed, so the count is always 0.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	err := s.client.DeleteAPI().DeleteWithName(ctx, s.org, s.bucket, time.Unix(0, 0).UTC(), before.UTC(),
		fmt.Sprintf(`_measurement="%s"`, measurement))
	if err != nil {
		return 0, fmt.Errorf("delete influx points: %w", err)
	}
	return 0, nil
}

func toPoint(pool string, point model.HistoricalDataPoint, granularity model.Granularity) *write.Point {
	return influxdb2.NewPoint(
		measurement,
		map[string]string{
			"pool":        strings.ToLower(pool),
			"granularity": string(granularity),
		},
		map[string]interface{}{
			"price":       point.Price.String(),
			"volume":      point.Volume.String(),
			"fees":        point.Fees.String(),
			"liquidity_x": point.LiquidityX.String(),
			"liquidity_y": point.LiquidityY.String(),
			"bin_id":      int64(point.BinID),
		},
		point.Timestamp.UTC(),
	)
}

func windowQuery(bucket, pool string, granularity model.Granularity, start, end time.Time) string {
	// range stop is exclusive
	return fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.pool == "%s")
			|> filter(fn: (r) => r.granularity == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"])
	`, bucket,
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Add(time.Nanosecond).Format(time.RFC3339Nano),
		measurement,
		strings.ToLower(pool),
		string(granularity),
	)
}

func fromValues(ts time.Time, values map[string]interface{}) (model.HistoricalDataPoint, error) {
	point := model.HistoricalDataPoint{Timestamp: ts.UTC()}
	fields := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"price", &point.Price},
		{"volume", &point.Volume},
		{"fees", &point.Fees},
		{"liquidity_x", &point.LiquidityX},
		{"liquidity_y", &point.LiquidityY},
	}
	for _, f := range fields {
		raw, ok := values[f.key].(string)
		if !ok {
			return model.HistoricalDataPoint{}, fmt.Errorf("field %s missing", f.key)
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return model.HistoricalDataPoint{}, fmt.Errorf("parse %s: %w", f.key, err)
		}
		*f.dst = v
	}
	if bin, ok := values["bin_id"].(int64); ok {
		point.BinID = int32(bin)
	}
	return point, nil
}
