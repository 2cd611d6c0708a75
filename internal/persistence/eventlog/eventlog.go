// Package eventlog appends domain events to events.jsonl, the append-only
// audit log. One JSON object per line, each carrying tick, seq and type.
// The engine never reads the log back; the only read path is the reopen
// scan that reconciles the file with the database.
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hearth.world/internal/sim/domain"
)

// Log is the append-only writer. It is owned by the commit phase and
// written only after the database transaction commits: the log may lag the
// database but must never lead it.
type Log struct {
	path string
	f    *os.File
}

// Open opens (or creates) the log and reconciles it with the database:
// a partial trailing line left by a crash mid-append is discarded, as is
// any complete frame whose sequence number exceeds the database's
// committed last_seq.
func Open(path string, lastSeq int64) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := truncateTornTail(path); err != nil {
		return nil, err
	}
	if err := truncateBeyondSeq(path, lastSeq); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Log{path: path, f: f}, nil
}

// truncateBeyondSeq drops every frame past the database's last committed
// sequence number. Frames are seq-ascending, so the file is cut at the
// first frame that leads the database.
func truncateBeyondSeq(path string, lastSeq int64) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var offset int64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		var fr Frame
		if err := json.Unmarshal(bytes.TrimSpace(line), &fr); err == nil && fr.Seq > lastSeq {
			return f.Truncate(offset)
		}
		offset += int64(len(line)) + 1
	}
	return sc.Err()
}

// truncateTornTail drops everything after the last newline. A frame is only
// valid once its final newline is on disk.
func truncateTornTail(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size == 0 {
		return nil
	}

	// Scan backwards for the last newline.
	const chunk = 4096
	end := size
	for end > 0 {
		start := end - chunk
		if start < 0 {
			start = 0
		}
		buf := make([]byte, end-start)
		if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
			return err
		}
		if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
			keep := start + int64(i) + 1
			if keep != size {
				return f.Truncate(keep)
			}
			return nil
		}
		end = start
	}
	// No newline at all: the whole file is one torn frame.
	return f.Truncate(0)
}

func (l *Log) Close() error { return l.f.Close() }

// Mark returns the current end offset; AbortTo rolls the file back to it.
func (l *Log) Mark() (int64, error) {
	return l.f.Seek(0, io.SeekEnd)
}

// AbortTo truncates the log back to a mark taken before a failed append.
func (l *Log) AbortTo(mark int64) error {
	if err := l.f.Truncate(mark); err != nil {
		return err
	}
	_, err := l.f.Seek(mark, io.SeekStart)
	return err
}

// Append writes one frame per event, with sequence numbers starting at
// firstSeq, and fsyncs. On error the caller rolls back with AbortTo.
func (l *Log) Append(events []domain.Event, firstSeq int64) error {
	if len(events) == 0 {
		return nil
	}
	w := bufio.NewWriter(l.f)
	for i, e := range events {
		line, err := encodeFrame(e, firstSeq+int64(i))
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return l.f.Sync()
}

// encodeFrame flattens an event into {"tick":…,"seq":…,"type":…, fields…}.
func encodeFrame(e domain.Event, seq int64) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["tick"] = e.EventTick()
	fields["seq"] = seq
	fields["type"] = e.Kind()
	return json.Marshal(fields)
}

// Frame is a decoded audit record. Used by tests and ReadAll only.
type Frame struct {
	Tick int            `json:"tick"`
	Seq  int64          `json:"seq"`
	Type string         `json:"type"`
	Rest map[string]any `json:"-"`
}

// ReadAll decodes every frame in the file at path. Audit tooling only.
func ReadAll(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Frame
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var fr Frame
		if err := json.Unmarshal(line, &fr); err != nil {
			return nil, fmt.Errorf("eventlog: bad frame: %w", err)
		}
		var rest map[string]any
		if err := json.Unmarshal(line, &rest); err == nil {
			delete(rest, "tick")
			delete(rest, "seq")
			delete(rest, "type")
			fr.Rest = rest
		}
		out = append(out, fr)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
