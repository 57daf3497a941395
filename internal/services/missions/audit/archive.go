// Package audit archives administrative audit entries as hourly rotated,
// zstd-compressed JSON lines next to the queryable audit table.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

const hourLayout = "2006-01-02-15"

// Archive appends JSON lines to <dir>/<prefix>-<hour>.jsonl.zst.
type Archive struct {
	dir    string
	prefix string
	clock  func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewArchive returns an archive rooted at dir. A nil clock uses time.Now.
func NewArchive(dir, prefix string, clock func() time.Time) *Archive {
	if prefix == "" {
		prefix = "audit"
	}
	if clock == nil {
		clock = time.Now
	}
	return &Archive{dir: dir, prefix: prefix, clock: clock}
}

// Write appends one entry, rotating to a new file when the hour changes.
func (a *Archive) Write(entry storage.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	hour := a.clock().UTC().Format(hourLayout)
	if hour != a.curHour {
		if err := a.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := a.w.Write(b); err != nil {
		return err
	}
	if err := a.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := a.w.Flush(); err != nil {
		return err
	}
	return a.enc.Flush()
}

// Close finishes the current frame and closes the file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

// PathForHour returns the archive file holding entries written at t.
func (a *Archive) PathForHour(t time.Time) string {
	return a.pathForHour(t.UTC().Format(hourLayout))
}

func (a *Archive) rotateLocked(hour string) error {
	if err := a.closeLocked(); err != nil {
		return err
	}
	path := a.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create audit archive dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit archive: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	a.f = f
	a.enc = enc
	a.w = bufio.NewWriterSize(enc, 64*1024)
	a.curHour = hour
	return nil
}

func (a *Archive) closeLocked() error {
	var err error
	if a.w != nil {
		_ = a.w.Flush()
	}
	if a.enc != nil {
		err = a.enc.Close()
		a.enc = nil
	}
	if a.f != nil {
		if closeErr := a.f.Close(); err == nil {
			err = closeErr
		}
		a.f = nil
	}
	a.w = nil
	a.curHour = ""
	return err
}

func (a *Archive) pathForHour(hour string) string {
	return filepath.Join(a.dir, fmt.Sprintf("%s-%s.jsonl.zst", a.prefix, hour))
}

// ReadFile decodes every entry in one archive file. Files reopened after a
// restart hold several concatenated frames; all of them are read.
func ReadFile(path string) ([]storage.AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var entries []storage.AuditEntry
	jd := json.NewDecoder(dec)
	for {
		var entry storage.AuditEntry
		if err := jd.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return entries, fmt.Errorf("decode audit archive %s: %w", path, err)
		}
		entries = append(entries, entry)
	}
}

// Recorder writes entries to the audit table and then to the archive. The
// table is authoritative; an archive failure is logged, not returned.
type Recorder struct {
	Store   storage.AuditStore
	Archive *Archive
	Logf    func(format string, args ...any)
}

// Record implements the engine's audit sink.
func (r Recorder) Record(ctx context.Context, entry storage.AuditEntry) error {
	if r.Store == nil {
		return errors.New("audit store is not configured")
	}
	if err := r.Store.AppendAudit(ctx, entry); err != nil {
		return err
	}
	r.Committed(entry)
	return nil
}

// Committed archives an entry the table already holds.
func (r Recorder) Committed(entry storage.AuditEntry) {
	if r.Archive == nil {
		return
	}
	if err := r.Archive.Write(entry); err != nil && r.Logf != nil {
		r.Logf("audit archive write failed action=%s target=%s: %v", entry.Action, entry.TargetID, err)
	}
}
