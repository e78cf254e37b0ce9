package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"liquidityPilot/internal/model"
)

type pointRecord struct {
	Pool        string                    `json:"pool"`
	Granularity model.Granularity         `json:"granularity"`
	Point       model.HistoricalDataPoint `json:"point"`
}

// JsonlHistoryStore keeps recorded history points in a local JSONL file.
type JsonlHistoryStore struct {
	mu     sync.Mutex
	writer *JsonlWriter
}

func NewJsonlHistoryStore(path string) *JsonlHistoryStore {
	return &JsonlHistoryStore{writer: NewJsonlWriter(path)}
}

// AppendPoint appends one recorded point.
func (s *JsonlHistoryStore) AppendPoint(ctx context.Context, pool string, point model.HistoricalDataPoint, granularity model.Granularity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Append(pointRecord{
		Pool:        strings.ToLower(pool),
		Granularity: granularity,
		Point:       point,
	})
}

// QueryWindow returns the pool's points with start <= timestamp <= end.
func (s *JsonlHistoryStore) QueryWindow(ctx context.Context, pool string, granularity model.Granularity, start, end time.Time) ([]model.HistoricalDataPoint, error) {
	s.mu.Lock()
	records, err := s.readAll()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	pool = strings.ToLower(pool)
	out := make([]model.HistoricalDataPoint, 0)
	for _, rec := range records {
		if rec.Pool != pool || rec.Granularity != granularity {
			continue
		}
		ts := rec.Point.Timestamp
		if ts.Before(start) || ts.After(end) {
			continue
		}
		out = append(out, rec.Point)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Prune rewrites the file without points older than before.
func (s *JsonlHistoryStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	kept := make([]any, 0, len(records))
	for _, rec := range records {
		if !rec.Point.Timestamp.Before(before) {
			kept = append(kept, rec)
		}
	}
	removed := int64(len(records) - len(kept))
	if removed == 0 {
		return 0, nil
	}
	if err := s.writer.Replace(kept); err != nil {
		return 0, fmt.Errorf("rewrite history: %w", err)
	}
	return removed, nil
}

func (s *JsonlHistoryStore) readAll() ([]pointRecord, error) {
	file, err := os.Open(s.writer.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	records := make([]pointRecord, 0, 256)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec pointRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode history record: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return records, nil
}
