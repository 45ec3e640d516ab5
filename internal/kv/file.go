package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// File is a Store that keeps all entries in one JSON object file. Writes
// replace the file atomically and every operation holds an advisory lock on
// a sibling ".lock" file, so several processes may share the same path.
type File struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// OpenFile prepares a file store at path. The file is created on first write.
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &File{path: path}, nil
}

// Path returns the backing file.
func (f *File) Path() string { return f.path }

func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := f.withLock(ctx, func() error {
		entries, err := f.read()
		if err != nil {
			return err
		}
		value, ok = entries[key]
		return nil
	})
	return value, ok, err
}

func (f *File) Set(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return f.withLock(ctx, func() error {
		entries, err := f.read()
		if err != nil {
			return err
		}
		entries[key] = value
		return f.write(entries)
	})
}

func (f *File) Delete(ctx context.Context, key string) error {
	return f.withLock(ctx, func() error {
		entries, err := f.read()
		if err != nil {
			return err
		}
		if _, ok := entries[key]; !ok {
			return nil
		}
		delete(entries, key)
		return f.write(entries)
	})
}

func (f *File) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *File) withLock(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	lf, err := os.OpenFile(f.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer lf.Close()

	if err := lockFile(lf); err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer unlockFile(lf)

	return fn()
}

func (f *File) read() (map[string]string, error) {
	entries := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	return entries, nil
}

func (f *File) write(entries map[string]string) error {
	data, err := sonic.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".formsync-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
