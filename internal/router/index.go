package router

import (
	"context"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

type entry struct {
	name      string
	extension string
	vector    vector
}

// InMemoryIndex is the default ToolSelector: a flat in-memory cosine
// index over hashed bag-of-words vectors. Fine at the scale of a single
// agent's tool catalog (tens to low hundreds of tools); it is not meant
// to scale to a shared multi-tenant tool corpus.
type InMemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]entry // by tool name
}

func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{entries: make(map[string]entry)}
}

func (idx *InMemoryIndex) IndexTools(ctx context.Context, tools []providers.ToolDefinition, extensionName string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for name, e := range idx.entries {
		if e.extension == extensionName {
			delete(idx.entries, name)
		}
	}
	for _, t := range tools {
		text := t.Function.Name + " " + t.Function.Description
		idx.entries[t.Function.Name] = entry{
			name:      t.Function.Name,
			extension: extensionName,
			vector:    embed(text),
		}
	}
	return nil
}

func (idx *InMemoryIndex) RemoveTool(ctx context.Context, name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, name)
	return nil
}

func (idx *InMemoryIndex) RemoveExtension(ctx context.Context, extensionName string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for name, e := range idx.entries {
		if e.extension == extensionName {
			delete(idx.entries, name)
		}
	}
	return nil
}

func (idx *InMemoryIndex) SelectTools(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	qv := embed(query)
	type scored struct {
		name  string
		score float32
	}
	scores := make([]scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		scores = append(scores, scored{name: e.name, score: cosineSimilarity(qv, e.vector)})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].name < scores[j].name
	})

	if len(scores) > k {
		scores = scores[:k]
	}
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.name
	}
	return out, nil
}
