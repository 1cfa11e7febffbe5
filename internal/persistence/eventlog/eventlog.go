// Package eventlog writes trade signals as zstd-compressed JSONL, one file
// per sim-day.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/worldsim/internal/engine"
)

// Writer is a signal sink that appends each signal to the file of its sim-day.
type Writer struct {
	baseDir string
	prefix  string

	mu     sync.Mutex
	curDay int64
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

// NewWriter creates a writer under baseDir. Files are opened lazily.
func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{baseDir: baseDir, prefix: prefix, curDay: -1}
}

// Emit implements engine.SignalSink. Write errors are logged, not returned,
// so a full disk never stalls the tick.
func (w *Writer) Emit(s engine.Signal) {
	if err := w.Write(s); err != nil {
		slog.Warn("signal log write failed", "seq", s.Seq, "error", err)
	}
}

// Write appends one signal.
func (w *Writer) Write(s engine.Signal) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := int64(s.Time / (24 * time.Hour))
	if day != w.curDay || w.w == nil {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// PathForDay returns the file holding signals of a sim-day (0-based).
func (w *Writer) PathForDay(day int64) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-day-%04d.jsonl.zst", w.prefix, day))
}

func (w *Writer) rotateLocked(day int64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.PathForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curDay = day
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// ReadFile decodes every signal in one log file.
func ReadFile(path string) ([]engine.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []engine.Signal
	jd := json.NewDecoder(dec)
	for {
		var s engine.Signal
		if err := jd.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		out = append(out, s)
	}
}
