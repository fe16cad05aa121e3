// Package store selects the record store backend an import writes to.
//
// Backends register themselves from an init function; a binary links a
// backend in with a blank import:
//
//	import _ "github.com/JonMunkholm/qbank/internal/store/postgres"
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/qbank/internal/config"
	"github.com/JonMunkholm/qbank/internal/core"
)

// ErrUnknownBackend is returned by Open for a backend nobody registered.
var ErrUnknownBackend = errors.New("unknown store backend")

// Options carries everything a backend needs to connect.
type Options struct {
	URL        string
	WriteKey   string
	Collection string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:             cfg.Store.URL,
		WriteKey:        cfg.Store.WriteKey,
		Collection:      cfg.Store.Collection,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	}
}

// Opener connects to one backend.
type Opener func(ctx context.Context, opts Options) (core.Store, error)

var (
	registry   = make(map[string]Opener)
	registryMu sync.RWMutex
)

// Register makes a backend available under name.
// Panics if the name is already registered.
func Register(name string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name = strings.ToLower(name)
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("store backend already registered: %s", name))
	}
	registry[name] = open
}

// Open connects to the named backend.
func Open(ctx context.Context, backend string, opts Options) (core.Store, error) {
	registryMu.RLock()
	open, ok := registry[strings.ToLower(backend)]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			ErrUnknownBackend, backend, strings.Join(Backends(), ", "))
	}

	s, err := open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}
	return s, nil
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to use as a SQL table name.
func ValidIdentifier(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid collection name %q: use letters, digits and underscores", name)
	}
	return nil
}
