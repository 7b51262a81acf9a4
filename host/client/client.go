// Package client talks to a controller over its framed serial protocol:
// it retrieves the data dictionary, sends commands by name and decodes
// the status responses.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"quadservo/core"
	"quadservo/host/serial"
	"quadservo/protocol"
)

// IdentifyChunk is the dictionary slice requested per identify command
const IdentifyChunk = 40

// ErrNoDictionary is returned when a command is sent before Identify
var ErrNoDictionary = errors.New("client: dictionary not loaded")

// CommandError is a command the controller rejected
type CommandError struct {
	Command string
	Code    uint32
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("controller rejected %s: %v", e.Command, e.cause())
}

// Unwrap maps the wire code back to the controller's sentinel error
func (e *CommandError) Unwrap() error {
	return e.cause()
}

func (e *CommandError) cause() error {
	switch e.Code {
	case core.CodeFaulted:
		return core.ErrFaulted
	case core.CodeInvalidAxis:
		return core.ErrInvalidAxis
	case core.CodeNotAtEndstop:
		return core.ErrNotAtEndstop
	case core.CodeBadArgs:
		return protocol.ErrShortArgs
	case core.CodeInvalidChannel:
		return core.ErrInvalidChannel
	}
	return fmt.Errorf("error code %d", e.Code)
}

// Client is a connection to one controller. Calls are serialized.
type Client struct {
	port      io.ReadWriteCloser
	transport *protocol.HostTransport

	callMu sync.Mutex
	dict   *Dictionary
	raw    []byte

	inboxMu sync.Mutex
	inbox   []protocol.Message
	arrived chan struct{}
}

// New wraps an open link. Call Identify before sending commands.
func New(port io.ReadWriteCloser) *Client {
	c := &Client{
		port:      port,
		transport: protocol.NewHostTransport(port),
		arrived:   make(chan struct{}, 1),
	}
	c.transport.SetResponseHandler(c.handleResponse)
	return c
}

// Dial opens addr, retrying with exponential backoff until ctx is done,
// and retrieves the dictionary. addr is a serial device path, or
// tcp://host:port for a simulator.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var port io.ReadWriteCloser
	op := func() error {
		var err error
		port, err = open(ctx, addr)
		if err != nil {
			log.Printf("connect %s: %v", addr, err)
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     50 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      10 * time.Second,
		Clock:               backoff.SystemClock}, ctx))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}

	c := New(port)
	if err := c.Identify(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func open(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	if hostport, ok := strings.CutPrefix(addr, "tcp://"); ok {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", hostport)
	}
	port, err := serial.Open(serial.DefaultConfig(addr))
	if err != nil {
		return nil, err
	}
	port.Flush()
	return port, nil
}

// Close closes the link
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) handleResponse(m protocol.Message) {
	c.inboxMu.Lock()
	c.inbox = append(c.inbox, m)
	c.inboxMu.Unlock()
	select {
	case c.arrived <- struct{}{}:
	default:
	}
}

// take removes and returns the first queued message with one of ids
func (c *Client) take(ids ...uint16) (protocol.Message, bool) {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	for i, m := range c.inbox {
		for _, id := range ids {
			if m.CmdID == id {
				c.inbox = append(c.inbox[:i], c.inbox[i+1:]...)
				return m, true
			}
		}
	}
	return protocol.Message{}, false
}

func (c *Client) clearInbox() {
	c.inboxMu.Lock()
	c.inbox = c.inbox[:0]
	c.inboxMu.Unlock()
}

// wait blocks until a message with one of ids is queued
func (c *Client) wait(ctx context.Context, ids ...uint16) (protocol.Message, error) {
	for {
		if m, ok := c.take(ids...); ok {
			return m, nil
		}
		select {
		case <-c.arrived:
		case <-ctx.Done():
			return protocol.Message{}, ctx.Err()
		}
	}
}

// Identify retrieves and parses the data dictionary. identify and
// identify_response always have ids 1 and 0.
func (c *Client) Identify(ctx context.Context) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	var buf bytes.Buffer
	for offset := uint32(0); ; {
		c.clearInbox()
		p := protocol.AppendVLQUint(nil, 1)
		p = protocol.AppendVLQUint(p, offset)
		p = protocol.AppendVLQUint(p, IdentifyChunk)
		if err := c.transport.Send(ctx, p); err != nil {
			return fmt.Errorf("identify at %d: %w", offset, err)
		}
		m, err := c.wait(ctx, 0)
		if err != nil {
			return fmt.Errorf("identify at %d: %w", offset, err)
		}
		r := m.Reader()
		got, chunk := r.Uint(), r.Bytes()
		if err := r.Err(); err != nil {
			return fmt.Errorf("identify at %d: %w", offset, err)
		}
		if got != offset {
			return fmt.Errorf("identify: offset mismatch: expected %d, got %d", offset, got)
		}
		buf.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < IdentifyChunk {
			break
		}
	}

	dict, err := ParseDictionary(buf.Bytes())
	if err != nil {
		return err
	}
	c.raw = buf.Bytes()
	c.dict = dict
	return nil
}

// Dictionary returns the dictionary loaded by Identify
func (c *Client) Dictionary() *Dictionary {
	return c.dict
}

// RawDictionary returns the dictionary JSON as received
func (c *Client) RawDictionary() []byte {
	return c.raw
}

// Call sends a command by name and returns the response named reply, or
// nil Fields when reply is empty. A command_error for the command is
// returned as *CommandError.
func (c *Client) Call(ctx context.Context, name, reply string, args ...int32) (Fields, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if c.dict == nil {
		return nil, ErrNoDictionary
	}
	cmd, ok := c.dict.Command(name)
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", name)
	}
	p, err := cmd.Encode(make([]byte, 0, 16), args...)
	if err != nil {
		return nil, err
	}

	c.clearInbox()
	if err := c.transport.Send(ctx, p); err != nil {
		return nil, fmt.Errorf("send %s: %w", name, err)
	}

	// responses precede the ACK, so anything the command produced is queued
	errID, hasErr := c.dict.ResponseID("command_error")
	if hasErr {
		for {
			m, ok := c.take(errID)
			if !ok {
				break
			}
			r := m.Reader()
			if id, code := r.Uint(), r.Uint(); r.Err() == nil && uint16(id) == cmd.ID {
				return nil, &CommandError{Command: name, Code: code}
			}
		}
	}
	if reply == "" {
		return nil, nil
	}

	replyID, ok := c.dict.ResponseID(reply)
	if !ok {
		return nil, fmt.Errorf("unknown response: %s", reply)
	}
	m, err := c.wait(ctx, replyID)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", reply, err)
	}
	format, _ := c.dict.Response(replyID)
	return format.Decode(m.Reader())
}
