package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/carecompanion/pkg/provider/llm"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
)

// ErrProviderNotRegistered means no factory exists for the configured name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

type (
	LLMFactory func(ProviderEntry) (llm.Provider, error)
	TTSFactory func(ProviderEntry) (tts.Provider, error)
)

// factories is one kind's name-to-constructor table.
type factories[P any] struct {
	kind   string
	byName map[string]func(ProviderEntry) (P, error)
}

func (f factories[P]) create(e ProviderEntry) (P, error) {
	build, ok := f.byName[e.Name]
	if !ok {
		var zero P
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, e.Name)
	}
	p, err := build(e)
	if err != nil {
		return p, fmt.Errorf("config: build %s/%s: %w", f.kind, e.Name, err)
	}
	return p, nil
}

// Registry resolves [ProviderEntry] names to constructed providers. A later
// registration under the same name replaces the earlier one. Safe for
// concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm factories[llm.Provider]
	tts factories[tts.Provider]
}

func NewRegistry() *Registry {
	return &Registry{
		llm: factories[llm.Provider]{kind: "llm", byName: map[string]func(ProviderEntry) (llm.Provider, error){}},
		tts: factories[tts.Provider]{kind: "tts", byName: map[string]func(ProviderEntry) (tts.Provider, error){}},
	}
}

func (r *Registry) RegisterLLM(name string, f LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm.byName[name] = f
}

func (r *Registry) RegisterTTS(name string, f TTSFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts.byName[name] = f
}

// CreateLLM builds the completion backend named by entry. Unknown names wrap
// [ErrProviderNotRegistered].
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// CreateTTS builds the speech backend named by entry. Unknown names wrap
// [ErrProviderNotRegistered].
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create(entry)
}

// Names lists the registered providers of kind "llm" or "tts" in sorted
// order. Any other kind yields nil.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case r.llm.kind:
		return slices.Sorted(maps.Keys(r.llm.byName))
	case r.tts.kind:
		return slices.Sorted(maps.Keys(r.tts.byName))
	}
	return nil
}
