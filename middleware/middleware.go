// Package middleware provides the handler chain every query passes
// through before it reaches the resolver.
package middleware

import (
	"context"
	"sort"
	"sync"

	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/zlog/v2"
)

// Handler interface.
type Handler interface {
	Name() string
	ServeDNS(context.Context, *Chain)
}

type registry struct {
	mu sync.RWMutex

	handlers []named
	chain    []Handler
	done     bool
}

type named struct {
	name string
	new  func(*config.Config) Handler
}

var m registry

// Register a middleware constructor under name. Setup puts the pkdns
// middlewares in their fixed chain order; other handlers follow in
// registration order.
func Register(name string, new func(*config.Config) Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = append(m.handlers, named{name: name, new: new})
}

// Setup constructs all registered handlers with cfg. Safe to call once.
func Setup(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return
	}

	// packages register from init, which runs in import path order,
	// not source import order, so the chain order is fixed here
	order := []string{"recovery", "accesslist", "metrics", "ratelimit", "guard", "resolver"}
	rank := func(name string) int {
		for i, n := range order {
			if n == name {
				return i
			}
		}
		return len(order)
	}
	sort.SliceStable(m.handlers, func(i, j int) bool {
		return rank(m.handlers[i].name) < rank(m.handlers[j].name)
	})

	for _, h := range m.handlers {
		zlog.Debug("Setup middleware", "name", h.name)
		m.chain = append(m.chain, h.new(cfg))
	}

	m.done = true
}

// Handlers returns the constructed chain.
func Handlers() []Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.chain
}

// Get returns a constructed handler by name, nil when absent.
func Get(name string) Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, h := range m.handlers {
		if h.name == name && i < len(m.chain) {
			return m.chain[i]
		}
	}

	return nil
}

// Ready reports whether Setup has run.
func Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.done
}
