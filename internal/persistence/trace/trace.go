// Package trace writes per-turn debug traces: the perception handed to the
// reasoner, the actions it returned and each action's result. Traces are
// zstd-compressed JSONL, rotated hourly, and are never read back by the
// engine.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// TurnTrace is one agent turn as recorded for debugging.
type TurnTrace struct {
	Tick       int           `json:"tick"`
	Agent      string        `json:"agent"`
	SessionID  string        `json:"session_id,omitempty"`
	Perception any           `json:"perception,omitempty"`
	Actions    []ActionTrace `json:"actions,omitempty"`
	Err        string        `json:"err,omitempty"`
}

// ActionTrace is one executed action inside a turn.
type ActionTrace struct {
	Tool    string          `json:"tool"`
	Args    json.RawMessage `json:"args,omitempty"`
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
}

// Writer appends zstd-compressed JSONL, one file per UTC hour.
type Writer struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewWriter creates a tracer writing under baseDir. Files are named
// <prefix>-<hour>.jsonl.zst.
func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{baseDir: baseDir, prefix: prefix}
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends one trace record. Safe for concurrent cluster goroutines.
func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
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

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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
	w.curHour = hour
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

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TurnTracer records agent turns under <dataDir>/traces.
type TurnTracer struct{ w *Writer }

func NewTurnTracer(dataDir string) *TurnTracer {
	return &TurnTracer{w: NewWriter(filepath.Join(dataDir, "traces"), "turns")}
}

func (t *TurnTracer) WriteTurn(v TurnTrace) error { return t.w.Write(v) }
func (t *TurnTracer) Close() error                { return t.w.Close() }
