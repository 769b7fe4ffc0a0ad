package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lin-gate/lingate/internal/domain/command"
)

// CommandStore implements command.Store with a map keyed by id.
type CommandStore struct {
	mu       sync.RWMutex
	commands map[int64]*command.Command
	nextID   int64
}

// NewCommandStore creates an empty command store.
func NewCommandStore() *CommandStore {
	return &CommandStore{commands: make(map[int64]*command.Command), nextID: 1}
}

func copyCommand(c *command.Command) *command.Command {
	cp := *c
	if c.ProcessedAt != nil {
		t := *c.ProcessedAt
		cp.ProcessedAt = &t
	}
	return &cp
}

func (s *CommandStore) list(keep func(*command.Command) bool) []command.Command {
	var out []command.Command
	for _, c := range s.commands {
		if keep(c) {
			out = append(out, *copyCommand(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// ListAll returns every queued command, newest-first.
func (s *CommandStore) ListAll(ctx context.Context) ([]command.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(*command.Command) bool { return true }), nil
}

// ListByStatus returns commands in the given status, newest-first.
func (s *CommandStore) ListByStatus(ctx context.Context, st command.Status) ([]command.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(c *command.Command) bool { return c.Status == st }), nil
}

// FindByID returns command.ErrNotFound when absent.
func (s *CommandStore) FindByID(ctx context.Context, id int64) (*command.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.commands[id]
	if !ok {
		return nil, command.ErrNotFound
	}
	return copyCommand(c), nil
}

// Insert enqueues a payload as unverified.
func (s *CommandStore) Insert(ctx context.Context, commandJSON string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &command.Command{
		ID:          s.nextID,
		CommandJSON: commandJSON,
		Status:      command.StatusUnverified,
		ReceivedAt:  time.Now(),
	}
	s.nextID++
	s.commands[c.ID] = c
	return c.ID, nil
}

// UpdateStatus advances the workflow and stamps processed_at.
func (s *CommandStore) UpdateStatus(ctx context.Context, id int64, st command.Status, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.commands[id]
	if !ok {
		return command.ErrNotFound
	}
	now := time.Now()
	c.Status = st
	c.ProcessedAt = &now
	if notes != "" {
		c.Notes = notes
	}
	return nil
}

// ClearVerified deletes all verified commands and returns the count.
func (s *CommandStore) ClearVerified(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, c := range s.commands {
		if c.Status == command.StatusVerified {
			delete(s.commands, id)
			n++
		}
	}
	return n, nil
}

var _ command.Store = (*CommandStore)(nil)
