package core

import (
	"errors"
	"sync"

	"quadservo/protocol"
)

// CommandHandler decodes its own arguments from args
type CommandHandler func(args *protocol.Reader) error

// Command is one entry of the command dictionary. Responses have no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument format, e.g. "axis=%c value=%i"
	Handler CommandHandler
}

// Signature returns "name format" as it appears in the dictionary
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// IsResponse reports whether the entry flows controller to host
func (c *Command) IsResponse() bool {
	return c.Handler == nil
}

// CommandRegistry assigns ids to commands and responses and dispatches
// incoming commands. Ids follow registration order.
type CommandRegistry struct {
	mu        sync.RWMutex
	commands  []*Command
	byName    map[string]*Command
	constants map[string]interface{}

	version string
	dict    []byte // cached dictionary, rebuilt on change
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		byName:    make(map[string]*Command),
		constants: make(map[string]interface{}),
		version:   "quadservo-" + protocol.Version,
	}
}

// GetGlobalRegistry returns the registry used by the firmware
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}

// RegisterCommand registers a command handler on the global registry
func RegisterCommand(name, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse registers a response on the global registry
func RegisterResponse(name, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a command. Registering a name twice returns the first id.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd, ok := r.byName[name]; ok {
		return cmd.ID
	}
	cmd := &Command{
		ID:      uint16(len(r.commands)),
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.commands = append(r.commands, cmd)
	r.byName[name] = cmd
	r.dict = nil
	return cmd.ID
}

// RegisterResponse adds a response message
func (r *CommandRegistry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

// GetCommand retrieves a command by id
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	return cmd, ok
}

// Count returns the number of registered commands and responses
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler for id. It matches protocol.Handler.
func (r *CommandRegistry) Dispatch(id uint16, args *protocol.Reader) error {
	cmd, ok := r.GetCommand(id)
	if !ok {
		return errors.New("unknown command id " + itoa(int(id)))
	}
	if cmd.Handler == nil {
		return errors.New("command " + cmd.Name + " is a response")
	}
	return cmd.Handler(args)
}
