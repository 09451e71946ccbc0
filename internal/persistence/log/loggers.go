package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"arenaworks.dev/internal/sim/session"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
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

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
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
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// OutcomeLogger writes one JSONL entry per ended session (compressed).
type OutcomeLogger struct{ w *JSONLZstdWriter }

func NewOutcomeLogger(dataDir string) *OutcomeLogger {
	return &OutcomeLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "outcomes"), "outcomes")}
}

func (l *OutcomeLogger) WriteOutcome(o session.Outcome) error { return l.w.Write(o) }
func (l *OutcomeLogger) Close() error                         { return l.w.Close() }

// Files lists the rotated files under dir with the given prefix, oldest first.
func Files(dir, prefix string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadJSONL decodes every line of a compressed JSONL file into fn.
func ReadJSONL(path string, fn func(line json.RawMessage) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	jd := json.NewDecoder(dec)
	for {
		var line json.RawMessage
		if err := jd.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// A file still being written may end mid-frame.
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if err := fn(line); err != nil {
			return err
		}
	}
}

// ReadOutcomes replays every outcome stored under dataDir in write order.
func ReadOutcomes(dataDir string, fn func(o session.Outcome) error) error {
	paths, err := Files(filepath.Join(dataDir, "outcomes"), "outcomes")
	if err != nil {
		return err
	}
	for _, p := range paths {
		err := ReadJSONL(p, func(line json.RawMessage) error {
			var o session.Outcome
			if err := json.Unmarshal(line, &o); err != nil {
				return err
			}
			return fn(o)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
