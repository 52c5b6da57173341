package session

import (
	"fmt"
	"os"
	"sync"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

// Store is the SessionStore: one append-only journal per session id,
// each with its own serialising background writer.
type Store struct {
	mu      sync.Mutex
	dir     string
	writers map[string]*sessionWriter
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session store dir: %w", err)
	}
	return &Store{dir: dir, writers: make(map[string]*sessionWriter)}, nil
}

func (s *Store) writerFor(id string) (*sessionWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.writers[id]; ok {
		return w, nil
	}
	w, err := openSessionWriter(s.dir, id)
	if err != nil {
		return nil, err
	}
	s.writers[id] = w
	return w, nil
}

// PersistMessagesBackground enqueues msgs to be appended to id's journal.
// The write happens off the caller's goroutine; call Flush or Shutdown to
// wait for it and observe any error.
func (s *Store) PersistMessagesBackground(id string, msgs []providers.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	w, err := s.writerFor(id)
	if err != nil {
		return err
	}
	w.AppendMessages(msgs)
	return nil
}

// ReadMessages returns id's full replayed conversation.
func (s *Store) ReadMessages(id string) ([]providers.Message, error) {
	w, err := s.writerFor(id)
	if err != nil {
		return nil, err
	}
	return w.Messages(), nil
}

// ReadMetadata returns a snapshot of id's sidecar metadata record.
func (s *Store) ReadMetadata(id string) (Metadata, error) {
	w, err := s.writerFor(id)
	if err != nil {
		return Metadata{}, err
	}
	return w.MetadataSnapshot(), nil
}

// UpdateMetadata applies mutate to id's metadata and rewrites the
// journal's head line to match.
func (s *Store) UpdateMetadata(id string, mutate func(*Metadata)) error {
	w, err := s.writerFor(id)
	if err != nil {
		return err
	}
	return w.UpdateMetadata(mutate)
}

// FlushBackgroundSaves fsyncs every open session's journal and returns
// the first error encountered, if any, after fsyncing the rest.
func (s *Store) FlushBackgroundSaves() error {
	s.mu.Lock()
	writers := make([]*sessionWriter, 0, len(s.writers))
	for _, w := range s.writers {
		writers = append(writers, w)
	}
	s.mu.Unlock()

	var first error
	for _, w := range writers {
		if err := w.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ShutdownBackgroundSaves flushes and closes every open session's
// journal, stopping its writer goroutine. The Store is unusable for
// writes afterward for sessions that were open at shutdown time.
func (s *Store) ShutdownBackgroundSaves() error {
	s.mu.Lock()
	writers := make(map[string]*sessionWriter, len(s.writers))
	for id, w := range s.writers {
		writers[id] = w
	}
	s.writers = make(map[string]*sessionWriter)
	s.mu.Unlock()

	var first error
	for _, w := range writers {
		if err := w.Shutdown(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
