package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrLocked is returned when exclusive access could not be obtained before
// the context or wait budget ran out.
var ErrLocked = errors.New("dispatch state is locked by another run")

// Store persists State. Lock is held across Load and Save so that only one
// batch mutates the state at a time.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, s State) error
	Lock(ctx context.Context) (unlock func(), err error)
}

// MemoryStore keeps state in process. It is used for dry runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	lock  chan struct{}
	state State
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lock: make(chan struct{}, 1), state: NewState()}
}

func (m *MemoryStore) Load(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state), nil
}

func (m *MemoryStore) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = cloneState(s)
	m.saves++
	return nil
}

func (m *MemoryStore) Lock(ctx context.Context) (func(), error) {
	select {
	case m.lock <- struct{}{}:
		return func() { <-m.lock }, nil
	case <-ctx.Done():
		return nil, ErrLocked
	}
}

// Saves counts successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneState(s State) State {
	out := State{
		LastTopFingerprint: s.LastTopFingerprint,
		LastTopAt:          s.LastTopAt,
		SymbolSent:         make(map[string]time.Time, len(s.SymbolSent)),
		DailySent:          make(map[string]int, len(s.DailySent)),
	}
	for k, v := range s.SymbolSent {
		out.SymbolSent[k] = v
	}
	for k, v := range s.DailySent {
		out.DailySent[k] = v
	}
	return out
}

// FileStore keeps state as a JSON file next to a lock file.
type FileStore struct {
	Path string

	// StaleLock is the age after which a left-over lock file is removed.
	StaleLock time.Duration
	// Wait bounds how long Lock polls for a held lock.
	Wait time.Duration
	Poll time.Duration
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		Path:      path,
		StaleLock: 10 * time.Minute,
		Wait:      5 * time.Second,
		Poll:      50 * time.Millisecond,
	}
}

func (f *FileStore) lockPath() string { return f.Path + ".lock" }

// Load returns an empty state when the file does not exist yet.
func (f *FileStore) Load(context.Context) (State, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return NewState(), nil
	}
	if err != nil {
		return State{}, err
	}

	s := NewState()
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	s.init()
	return s, nil
}

// Save writes to a temporary file in the same directory and renames it over
// the target.
func (f *FileStore) Save(_ context.Context, s State) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Lock creates the lock file exclusively, polling until it is free, stale,
// or the wait budget is spent.
func (f *FileStore) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return nil, err
	}

	poll := f.Poll
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	deadline := time.Now().Add(f.Wait)
	lp := f.lockPath()

	for {
		lf, err := os.OpenFile(lp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(lf, "%d\n", os.Getpid())
			_ = lf.Close()
			return func() { _ = os.Remove(lp) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}

		if info, serr := os.Stat(lp); serr == nil && f.StaleLock > 0 && time.Since(info.ModTime()) > f.StaleLock {
			_ = os.Remove(lp)
			continue
		}

		if !time.Now().Before(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ErrLocked
		case <-time.After(poll):
		}
	}
}

// Reset removes the state file.
func (f *FileStore) Reset() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
