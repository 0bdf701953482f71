package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrUnknownOperation is returned for names nothing was registered under.
var ErrUnknownOperation = errors.New("usecase: unknown operation")

// CommandHandler changes session state (login, register, logout).
type CommandHandler func(ctx context.Context, args []string) (interface{}, error)

// QueryHandler reads resolved state (whoami, permissions, payment).
type QueryHandler func(ctx context.Context, args []string) (interface{}, error)

type entry struct {
	usage   string
	command CommandHandler
	query   QueryHandler
}

// Dispatcher routes named operations to their handlers. Names are shared
// between commands and queries; the last registration wins.
type Dispatcher struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{entries: make(map[string]entry)}
}

func (d *Dispatcher) RegisterCommand(name, usage string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[name] = entry{usage: usage, command: handler}
}

func (d *Dispatcher) RegisterQuery(name, usage string, handler QueryHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[name] = entry{usage: usage, query: handler}
}

func (d *Dispatcher) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.entries[name]
	return ok
}

// IsQuery reports whether name is a registered read-only operation.
func (d *Dispatcher) IsQuery(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries[name].query != nil
}

// Execute runs the command or query registered under name.
func (d *Dispatcher) Execute(ctx context.Context, name string, args []string) (interface{}, error) {
	d.mu.RLock()
	e, ok := d.entries[name]
	d.mu.RUnlock()
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	case e.command != nil:
		return e.command(ctx, args)
	default:
		return e.query(ctx, args)
	}
}

// Usage writes one line per registered operation, sorted by name.
func (d *Dispatcher) Usage(w io.Writer) {
	d.mu.RLock()
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	d.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		d.mu.RLock()
		usage := d.entries[name].usage
		d.mu.RUnlock()
		fmt.Fprintf(w, "  %-12s %s\n", name, usage)
	}
}
