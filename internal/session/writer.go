package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

// sessionWriter owns one session's journal file and serialises every
// read and write against it through a single goroutine, matching the
// "writer task owns the file handle" resource policy: no lock is needed
// around the file or its in-memory cache because only this goroutine
// ever touches them.
type sessionWriter struct {
	id   string
	path string

	file     *os.File
	meta     *Metadata
	messages []providers.Message

	ops     chan func()
	lastErr error
}

func openSessionWriter(dir, id string) (*sessionWriter, error) {
	path := filepath.Join(dir, sanitizeID(id)+".ndjson")

	meta, messages, err := replay(path, id)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	if fi, statErr := f.Stat(); statErr == nil && fi.Size() == 0 {
		if err := writeLine(f, line{Kind: kindMetadata, Metadata: meta}); err != nil {
			f.Close()
			return nil, err
		}
	}

	w := &sessionWriter{
		id:       id,
		path:     path,
		file:     f,
		meta:     meta,
		messages: messages,
		ops:      make(chan func(), 64),
	}
	go w.loop()
	return w, nil
}

func (w *sessionWriter) loop() {
	for op := range w.ops {
		op()
	}
}

// do enqueues fn and blocks until it has run, preserving submission order
// relative to every other enqueued operation on this session.
func (w *sessionWriter) do(fn func()) {
	done := make(chan struct{})
	w.ops <- func() {
		fn()
		close(done)
	}
	<-done
}

// AppendMessages enqueues a background write; it does not block on disk
// I/O, matching persist_messages_background's fire-and-forget contract.
// Any write failure is recorded and surfaced by the next Flush.
func (w *sessionWriter) AppendMessages(msgs []providers.Message) {
	batch := append([]providers.Message(nil), msgs...)
	w.ops <- func() {
		for _, m := range batch {
			m := m
			if err := writeLine(w.file, line{Kind: kindMessage, Message: &m}); err != nil {
				w.lastErr = err
				slog.Error("session.append_failed", "session", w.id, "error", err)
				return
			}
			w.messages = append(w.messages, m)
		}
		w.meta.Updated = now()
		w.meta.LastMessageCount = len(w.messages)
	}
}

func (w *sessionWriter) Messages() []providers.Message {
	var out []providers.Message
	w.do(func() {
		out = append([]providers.Message(nil), w.messages...)
	})
	return out
}

func (w *sessionWriter) MetadataSnapshot() Metadata {
	var out Metadata
	w.do(func() { out = *w.meta })
	return out
}

// UpdateMetadata mutates the cached metadata and rewrites the journal's
// head line, which requires rewriting the whole file: metadata line,
// then every message line, atomically via temp-file-then-rename so a
// crash mid-rewrite never leaves a half-written journal.
func (w *sessionWriter) UpdateMetadata(mutate func(*Metadata)) error {
	var rerr error
	w.do(func() {
		mutate(w.meta)
		w.meta.Updated = now()
		rerr = w.rewriteFile()
	})
	return rerr
}

func (w *sessionWriter) rewriteFile() error {
	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, "session-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := encodeLine(bw, line{Kind: kindMetadata, Metadata: w.meta}); err != nil {
		tmp.Close()
		return err
	}
	for i := range w.messages {
		if err := encodeLine(bw, line{Kind: kindMessage, Message: &w.messages[i]}); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return err
	}
	cleanup = false

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	return nil
}

// Flush fsyncs the journal and returns any write error observed since
// the last Flush.
func (w *sessionWriter) Flush() error {
	var rerr error
	w.do(func() {
		if err := w.file.Sync(); err != nil {
			rerr = err
		}
		if rerr == nil {
			rerr = w.lastErr
		}
		w.lastErr = nil
	})
	return rerr
}

// Shutdown fsyncs the journal, closes the file, and stops the writer
// goroutine. No further operations may be enqueued afterward.
func (w *sessionWriter) Shutdown() error {
	var rerr error
	w.do(func() {
		if err := w.file.Sync(); err != nil {
			rerr = err
		}
		if err := w.file.Close(); err != nil && rerr == nil {
			rerr = err
		}
	})
	close(w.ops)
	return rerr
}

func writeLine(f *os.File, l line) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

func encodeLine(w *bufio.Writer, l line) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// replay reads an existing journal from disk, returning its metadata (or
// a freshly minted one if the file doesn't exist yet) and every message
// record that parsed successfully. A corrupt line truncates the readable
// prefix instead of failing the whole load: everything before it is kept,
// everything from it onward is treated as if the file ended there.
func replay(path, id string) (*Metadata, []providers.Message, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return newMetadata(id), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer f.Close()

	meta := newMetadata(id)
	var messages []providers.Message

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var l line
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			slog.Warn("session.journal_corrupt", "session", id, "line", lineNo, "error", err)
			break
		}
		switch l.Kind {
		case kindMetadata:
			if l.Metadata != nil {
				meta = l.Metadata
			}
		case kindMessage:
			if l.Message != nil {
				messages = append(messages, *l.Message)
			}
		}
	}
	return meta, messages, nil
}
