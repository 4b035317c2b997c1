package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "pushfan/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.users.snapshot.json (periodic snapshot: id -> subinfo)
//   - <prefix>.users.journal.jsonl (append-only journal)
//
// The journal is compacted into the snapshot every compactEvery writes.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File
	users        map[string]string

	writes int
}

const compactEvery = 1000

type journalRecord struct {
	Op      string `json:"op"` // "put" | "del"
	ID      string `json:"id"`
	SubInfo string `json:"subinfo,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".users.snapshot.json"
	journalPath := prefix + ".users.journal.jsonl"

	users := map[string]string{}
	if err := loadSnapshot(snapPath, users); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := replayJournal(journalPath, users); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		users:        users,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

func (s *fileStore) Find(ctx context.Context, pattern string) ([]Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		if strings.Contains(id, pattern) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, Record{ID: id, Subscription: []byte(s.users[id])})
	}
	return out, nil
}

func (s *fileStore) Insert(ctx context.Context, id string, subscription []byte) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	if _, ok := s.users[id]; ok {
		return ErrConflict
	}
	if err := s.appendLocked(journalRecord{Op: "put", ID: id, SubInfo: string(subscription)}); err != nil {
		return err
	}
	s.users[id] = string(subscription)
	s.compactIfDueLocked()
	return nil
}

func (s *fileStore) Delete(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	if _, ok := s.users[id]; !ok {
		return nil
	}
	if err := s.appendLocked(journalRecord{Op: "del", ID: id}); err != nil {
		return err
	}
	delete(s.users, id)
	if err := s.journal.Sync(); err != nil {
		return err
	}
	s.compactIfDueLocked()
	return nil
}

// Commit fsyncs the journal.
func (s *fileStore) Commit(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	return s.journal.Sync()
}

func (s *fileStore) appendLocked(r journalRecord) error {
	if err := json.NewEncoder(s.journal).Encode(r); err != nil {
		return err
	}
	s.writes++
	return nil
}

// compactIfDueLocked folds the journal into the snapshot. Call it only after
// s.users reflects every journaled write, since the journal is truncated.
func (s *fileStore) compactIfDueLocked() {
	if s.writes < compactEvery {
		return
	}
	// Best-effort; the journal still holds everything if this fails.
	if err := s.compactLocked(); err != nil {
		s.log.Debug("journal compact failed", logx.Err(err))
		return
	}
	s.writes = 0
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.users); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]string
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.ID == "" {
			// torn tail write
			continue
		}
		switch r.Op {
		case "put":
			out[r.ID] = r.SubInfo
		case "del":
			delete(out, r.ID)
		}
	}
	return sc.Err()
}
