package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"

	"github.com/rs/zerolog/log"
)

// DefaultMaxAge 超过该时间的快照不再使用
const DefaultMaxAge = 24 * time.Hour

// file 快照文件的读写，写入先落临时文件再 rename
type file struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
}

func newFile(path string, maxAge time.Duration) file {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return file{path: path, maxAge: maxAge, now: time.Now}
}

// read 文件不存在返回 nil, nil
func (f file) read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", f.path, err)
	}
	return data, nil
}

func (f file) stale(at time.Time) bool {
	return at.IsZero() || f.now().Sub(at) > f.maxAge
}

func (f file) write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// TableStore 资金费表的 JSON 快照，用于重启后立即展示
type TableStore struct {
	f file
}

func NewTableStore(path string, maxAge time.Duration) *TableStore {
	return &TableStore{f: newFile(path, maxAge)}
}

// Load 文件缺失、格式错误、过期或没有合法行时返回 nil
func (s *TableStore) Load() (*model.Table, error) {
	data, err := s.f.read()
	if err != nil || data == nil {
		return nil, err
	}
	var t model.Table
	if err := json.Unmarshal(data, &t); err != nil {
		log.Warn().Str("path", s.f.path).Err(err).Msg("snapshot malformed, ignoring")
		return nil, nil
	}
	if s.f.stale(t.LastUpdated) {
		log.Info().Str("path", s.f.path).Time("last_updated", t.LastUpdated).Msg("snapshot stale, ignoring")
		return nil, nil
	}
	t.Rows = service.ValidRows(t.Rows)
	if t.Empty() {
		return nil, nil
	}
	return &t, nil
}

// Save 空表不写入，避免覆盖上一次的好数据
func (s *TableStore) Save(t model.Table) error {
	if t.Empty() {
		return nil
	}
	return s.f.write(t)
}

// HistoryStore lighter 历史统计的 JSON 快照
type HistoryStore struct {
	f file
}

func NewHistoryStore(path string, maxAge time.Duration) *HistoryStore {
	return &HistoryStore{f: newFile(path, maxAge)}
}

func (s *HistoryStore) Load() (*model.HistorySnapshot, error) {
	data, err := s.f.read()
	if err != nil || data == nil {
		return nil, err
	}
	var snap model.HistorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Str("path", s.f.path).Err(err).Msg("history snapshot malformed, ignoring")
		return nil, nil
	}
	if s.f.stale(snap.LastUpdated) {
		return nil, nil
	}
	rows := make([]model.HistoryRow, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		if r.Symbol != "" {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	snap.Rows = rows
	return &snap, nil
}

func (s *HistoryStore) Save(snap model.HistorySnapshot) error {
	if len(snap.Rows) == 0 {
		return nil
	}
	return s.f.write(snap)
}
