package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLStore appends one plan record per line. A rotating store hands the
// live file to lumberjack; Query then reads the rotated backups too.
type JSONLStore struct {
	mu      sync.Mutex
	path    string
	out     io.WriteCloser
	rotates bool
}

// NewJSONLStore appends to a single file that is never rotated.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLStore{path: path, out: f}, nil
}

// NewRotatingJSONLStore rotates the file once it reaches maxSizeMB, keeping
// at most maxBackups files no older than maxAgeDays. Zero keeps everything.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*JSONLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &JSONLStore{
		path:    path,
		rotates: true,
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
	}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *JSONLStore) Append(ctx context.Context, rec PlanRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.out.Write(append(line, '\n'))
	return err
}

// Query scans every file oldest first. Lines that do not decode are skipped.
func (s *JSONLStore) Query(ctx context.Context, q LogQuery) ([]PlanRecord, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []PlanRecord
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(name)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res, err = scanRecords(f, q, res)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	}
	return q.latest(res), nil
}

// files lists lumberjack backups, whose names sort by rotation time, then
// the live file.
func (s *JSONLStore) files() ([]string, error) {
	if !s.rotates {
		return []string{s.path}, nil
	}
	ext := filepath.Ext(s.path)
	backups, err := filepath.Glob(s.path[:len(s.path)-len(ext)] + "-*" + ext)
	if err != nil {
		return nil, err
	}
	sort.Strings(backups)
	return append(backups, s.path), nil
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}

func scanRecords(r io.Reader, q LogQuery, dst []PlanRecord) ([]PlanRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec PlanRecord
		if json.Unmarshal(scanner.Bytes(), &rec) != nil {
			continue
		}
		if q.matches(rec) {
			dst = append(dst, rec)
		}
	}
	return dst, scanner.Err()
}
