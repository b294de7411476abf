package game

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateGame is returned when a game type is registered twice.
var ErrDuplicateGame = errors.New("game type already registered")

// Registry maps game types to their settlement rules.
// It is safe for concurrent use.
type Registry struct {
	games map[string]Game
	mu    sync.RWMutex
}

// NewRegistry creates a new game registry.
func NewRegistry() *Registry {
	return &Registry{
		games: make(map[string]Game),
	}
}

// Register adds a game to the registry. Each type can be registered once.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return errors.New("cannot register nil game")
	}
	if g.Type() == "" {
		return errors.New("game type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[g.Type()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateGame, g.Type())
	}
	r.games[g.Type()] = g
	return nil
}

// Get retrieves a game by its type.
func (r *Registry) Get(gameType string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[gameType]
	return g, ok
}

// Types returns all registered game types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.games))
	for t := range r.games {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
