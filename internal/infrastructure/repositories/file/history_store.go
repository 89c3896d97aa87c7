package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
	"lenslink/pkg/utils"
)

const maxLineBytes = 16 << 20

// HistoryStore appends scan records to one JSON-lines file per local day and
// keeps the most recent records in memory.
type HistoryStore struct {
	dir    string
	window int
	ring   []domain.ScanRecord // oldest first
	now    func() time.Time
	logger *zap.SugaredLogger
	mu     sync.RWMutex
}

func NewHistoryStore(dir string, window int, logger *zap.SugaredLogger) (*HistoryStore, error) {
	if window <= 0 {
		return nil, fmt.Errorf("history window must be positive, got %d", window)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &HistoryStore{
		dir:    dir,
		window: window,
		now:    time.Now,
		logger: logger,
	}, nil
}

var _ ports.HistoryStore = (*HistoryStore)(nil)

// BucketFor is the day file holding records created at t
func (s *HistoryStore) BucketFor(t time.Time) string {
	return filepath.Join(s.dir, utils.DayKey(t)+".jsonl")
}

// Load replaces the in-memory window with the tail of today's bucket.
func (s *HistoryStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.BucketFor(s.now())
	records, err := s.readBucket(path)
	if err != nil {
		return err
	}

	if len(records) > s.window {
		records = records[len(records)-s.window:]
	}
	s.ring = records

	s.logger.Infow("History loaded", "bucket", path, "records", len(records))
	return nil
}

// Append writes record to its day bucket and pushes it into the window. The
// window is updated even when the write fails.
func (s *HistoryStore) Append(ctx context.Context, record domain.ScanRecord) error {
	record = record.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushLocked(record)

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode record %s: %v", domain.ErrPersistence, record.ID, err)
	}
	line = append(line, '\n')

	path := s.BucketFor(s.createdAt(record))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", domain.ErrPersistence, path, err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("%w: append %s: %v", domain.ErrPersistence, path, err)
	}
	return nil
}

// AppendToThread adds entry to the record's thread in its creation-day bucket
// and in the window. A bucket without the record is left untouched. The bool
// is false only when the record is in neither place.
func (s *HistoryStore) AppendToThread(ctx context.Context, recordID string, entry domain.ThreadEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inRing := false
	created := s.now()
	if idx := s.indexLocked(recordID); idx >= 0 {
		inRing = true
		created = s.createdAt(s.ring[idx])
		s.ring[idx].Thread = append(s.ring[idx].Thread, entry)
	} else if t, ok := utils.ParseRecordTime(recordID); ok {
		created = t
	}

	inFile, err := s.rewriteThread(s.BucketFor(created), recordID, entry)
	return inFile || inRing, err
}

// Recent returns the window, most recent first
func (s *HistoryStore) Recent() []domain.ScanRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScanRecord, 0, len(s.ring))
	for i := len(s.ring) - 1; i >= 0; i-- {
		out = append(out, s.ring[i].Clone())
	}
	return out
}

// Day reads a whole bucket in file order. A missing bucket is empty.
func (s *HistoryStore) Day(ctx context.Context, date string) ([]domain.ScanRecord, error) {
	if !utils.ValidDayKey(date) {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readBucket(filepath.Join(s.dir, date+".jsonl"))
}

func (s *HistoryStore) pushLocked(record domain.ScanRecord) {
	s.ring = append(s.ring, record)
	if over := len(s.ring) - s.window; over > 0 {
		s.ring = append([]domain.ScanRecord(nil), s.ring[over:]...)
	}
}

func (s *HistoryStore) indexLocked(recordID string) int {
	for i := len(s.ring) - 1; i >= 0; i-- {
		if s.ring[i].ID == recordID {
			return i
		}
	}
	return -1
}

// createdAt prefers the stored ISO timestamp, then the time embedded in the
// id, then the current time.
func (s *HistoryStore) createdAt(record domain.ScanRecord) time.Time {
	if t, err := utils.ParseTimestamp(record.TimestampISO); err == nil {
		return t
	}
	if t, ok := utils.ParseRecordTime(record.ID); ok {
		return t
	}
	return s.now()
}

func (s *HistoryStore) readBucket(path string) ([]domain.ScanRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.ScanRecord{}, nil
		}
		return nil, fmt.Errorf("failed to open history bucket: %w", err)
	}
	defer f.Close()

	records := []domain.ScanRecord{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record domain.ScanRecord
		if err := json.Unmarshal(line, &record); err != nil {
			s.logger.Warnw("Skipping malformed history line", "bucket", path, "line", lineNo, "error", err)
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to read history bucket: %w", err)
	}
	return records, nil
}

// rewriteThread rewrites path with entry appended to recordID's thread. Other
// lines, malformed ones included, are kept byte for byte.
func (s *HistoryStore) rewriteThread(path, recordID string, entry domain.ThreadEntry) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read %s: %v", domain.ErrPersistence, path, err)
	}

	lines := bytes.Split(data, []byte("\n"))
	found := false
	for i, line := range lines {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}

		var record domain.ScanRecord
		if err := json.Unmarshal(trimmed, &record); err != nil || record.ID != recordID {
			continue
		}

		record.Thread = append(record.Thread, entry)
		updated, err := json.Marshal(record)
		if err != nil {
			return true, fmt.Errorf("%w: encode record %s: %v", domain.ErrPersistence, recordID, err)
		}
		lines[i] = updated
		found = true
		break
	}

	if !found {
		return false, nil
	}

	if err := writeFileAtomic(path, bytes.Join(lines, []byte("\n"))); err != nil {
		return true, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return true, nil
}
