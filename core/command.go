package core

import (
	"errors"
	"sync"

	"hexcell/protocol"
)

// CommandHandler handles one command. The handler decodes its own VLQ
// arguments from data and advances the slice past them.
type CommandHandler func(data *[]byte) error

// Command represents an application command delivered over the mesh
type Command struct {
	ID      uint16
	Name    string
	Format  string // Argument description (e.g., "slot=%u count=%u")
	Handler CommandHandler
}

var errUnknownCommand = errors.New("unknown command")

// CommandRegistry maps command ids to handlers. Ids are assigned in
// registration order, so every cell registering the same commands in the
// same order agrees on the numbering.
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	nextID     uint16
	dictionary string
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command and returns its id. Registering an existing
// name returns the id it already has.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := r.nextID
	r.nextID++

	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id

	r.rebuildDictionary()
	return id
}

// GetCommand retrieves a command by id
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Lookup returns the id registered for name
func (r *CommandRegistry) Lookup(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID. Failures wrap
// CommandError.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return &commandFailure{id: cmdID, cause: errUnknownCommand}
	}
	if err := cmd.Handler(data); err != nil {
		return &commandFailure{id: cmdID, name: cmd.Name, cause: err}
	}
	return nil
}

// DispatchFrame runs every command packed in frame: a VLQ command id
// followed by that command's arguments, repeated. Processing stops at the
// first failure; a panicking handler is reported as a CommandError.
func (r *CommandRegistry) DispatchFrame(frame []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &commandFailure{cause: errors.New("handler panic")}
		}
	}()

	for len(frame) > 0 {
		cmdID, derr := protocol.DecodeVLQUint(&frame)
		if derr != nil {
			return &commandFailure{cause: derr}
		}
		if err := r.Dispatch(uint16(cmdID), &frame); err != nil {
			return err
		}
	}
	return nil
}

// GetDictionary returns one "name format" line per command in id order
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// rebuildDictionary must be called with the lock held
func (r *CommandRegistry) rebuildDictionary() {
	dict := ""
	for i := uint16(0); i < r.nextID; i++ {
		if cmd, ok := r.commands[i]; ok {
			if cmd.Format != "" {
				dict += cmd.Name + " " + cmd.Format + "\n"
			} else {
				dict += cmd.Name + "\n"
			}
		}
	}
	r.dictionary = dict
}
