package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error surfaced by injected faults.
var ErrInjected = errors.New("injected I/O fault")

// Fault defines failure behavior for files whose path matches a rule.
// The zero value injects nothing.
type Fault struct {
	// FailOnWrite fails every write outright
	FailOnWrite bool

	// FailAfterBytes, when positive, lets this many bytes through and
	// fails writes past the limit, like a disk filling up mid-write
	FailAfterBytes int64

	// FailOnSync makes Sync return an error
	FailOnSync bool

	// FailOnClose makes Close return an error after closing the file
	FailOnClose bool

	// Err overrides ErrInjected as the surfaced error
	Err error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS wraps a FileSystem and injects write, sync, and close faults
// into files whose path contains a registered pattern. Used to simulate
// crashes mid-write in durability tests.
type FaultyFS struct {
	inner FileSystem

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaultyFS creates a FaultyFS wrapping the provided FileSystem
// (Default if nil). Without rules it behaves as a transparent wrapper.
func NewFaultyFS(inner FileSystem) *FaultyFS {
	if inner == nil {
		inner = Default
	}
	return &FaultyFS{
		inner: inner,
		rules: make(map[string]Fault),
	}
}

// FailPath registers a fault for every file whose path contains pattern.
func (f *FaultyFS) FailPath(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// ClearFaults removes all registered rules.
func (f *FaultyFS) ClearFaults() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, fault := range f.rules {
		if strings.Contains(name, pattern) {
			return fault, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.inner.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	if fault, ok := f.match(name); ok {
		return &faultyFile{File: file, fault: fault}, nil
	}
	return file, nil
}

func (f *FaultyFS) Remove(name string) error             { return f.inner.Remove(name) }
func (f *FaultyFS) RemoveAll(path string) error          { return f.inner.RemoveAll(path) }
func (f *FaultyFS) Rename(oldpath, newpath string) error { return f.inner.Rename(oldpath, newpath) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.inner.Stat(name)
}
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.inner.MkdirAll(path, perm)
}
func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) {
	return f.inner.ReadDir(name)
}
func (f *FaultyFS) Truncate(name string, size int64) error {
	return f.inner.Truncate(name, size)
}

type faultyFile struct {
	File
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailOnWrite {
		return 0, ff.fault.err()
	}
	if ff.fault.FailAfterBytes > 0 && ff.written+int64(len(p)) > ff.fault.FailAfterBytes {
		// Partial write up to the limit, then fail.
		room := ff.fault.FailAfterBytes - ff.written
		if room > 0 {
			n, _ := ff.File.Write(p[:room])
			ff.written += int64(n)
			return n, ff.fault.err()
		}
		return 0, ff.fault.err()
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		ff.File.Close()
		return ff.fault.err()
	}
	return ff.File.Close()
}
