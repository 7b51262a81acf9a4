package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrClosed     = errors.New("protocol: transport closed")
	ErrAckTimeout = errors.New("protocol: no acknowledgement")
)

// DefaultAckTimeout bounds the wait for an ACK when the context has no deadline
const DefaultAckTimeout = 2 * time.Second

// Message is one response decoded from a controller block
type Message struct {
	Seq   uint8
	CmdID uint16
	Args  []byte // arguments following the command id, owned by the receiver
}

// Reader returns a Reader over the message arguments
func (m Message) Reader() *Reader {
	return NewReader(m.Args)
}

// HostTransport is the host side of the link: it sends command blocks,
// waits for their ACK and delivers responses.
type HostTransport struct {
	port io.ReadWriteCloser

	sendMu sync.Mutex
	seq    uint8

	acks      chan uint8
	responses chan Message

	handlerMu sync.Mutex
	handler   func(Message)

	stop chan struct{}
	done chan struct{}
	once sync.Once
	err  error
}

// NewHostTransport starts reading from port in the background
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:      port,
		seq:       SeqDest,
		acks:      make(chan uint8, 4),
		responses: make(chan Message, 32),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SetResponseHandler registers a callback run on the read goroutine for
// every response. Responses are still queued for Receive.
func (t *HostTransport) SetResponseHandler(h func(Message)) {
	t.handlerMu.Lock()
	t.handler = h
	t.handlerMu.Unlock()
}

// Send frames payload (one or more encoded commands) and waits for the ACK.
// A NAK or a missing ACK causes one retransmission.
func (t *HostTransport) Send(ctx context.Context, payload []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	block, err := AppendBlock(nil, t.seq, payload)
	if err != nil {
		return err
	}
	want := NextSeq(t.seq)

	for attempt := 0; attempt < 2; attempt++ {
		if _, err := t.port.Write(block); err != nil {
			return fmt.Errorf("write block: %w", err)
		}
		err = t.waitAck(ctx, want)
		if err == nil {
			t.seq = want
			return nil
		}
		if !errors.Is(err, ErrAckTimeout) {
			return err
		}
	}
	return err
}

// SendCommand encodes a single command and sends it
func (t *HostTransport) SendCommand(ctx context.Context, cmdID uint16, args ...int32) error {
	p := AppendVLQUint(make([]byte, 0, 16), uint32(cmdID))
	for _, a := range args {
		p = AppendVLQ(p, a)
	}
	return t.Send(ctx, p)
}

func (t *HostTransport) waitAck(ctx context.Context, want uint8) error {
	timer := time.NewTimer(DefaultAckTimeout)
	defer timer.Stop()
	for {
		select {
		case seq := <-t.acks:
			if seq == want {
				return nil
			}
			// NAK or a stale ACK
			return ErrAckTimeout
		case <-timer.C:
			return ErrAckTimeout
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
			return t.closedErr()
		}
	}
}

// Receive returns the next response
func (t *HostTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case m := <-t.responses:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-t.done:
		return Message{}, t.closedErr()
	}
}

func (t *HostTransport) closedErr() error {
	if t.err != nil && !errors.Is(t.err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrClosed, t.err)
	}
	return ErrClosed
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	var framer Framer
	rx := NewBuffer(4 * BlockMax)
	chunk := make([]byte, BlockMax)
	for {
		n, err := t.port.Read(chunk)
		if n > 0 {
			if rx.Free() < n {
				// never holds more than a partial block; drop stale data
				rx.Reset()
				framer.Reset()
			}
			rx.Write(chunk[:n])
			t.drain(&framer, rx)
		}
		if err != nil {
			select {
			case <-t.stop:
			default:
				t.err = err
			}
			return
		}
	}
}

func (t *HostTransport) drain(framer *Framer, rx *Buffer) {
	for {
		blk, n, res := framer.Scan(rx.Bytes())
		if res == ScanBlock {
			t.deliver(blk)
		}
		rx.Discard(n)
		if res == ScanIncomplete {
			return
		}
	}
}

func (t *HostTransport) deliver(blk Block) {
	if blk.IsAck() {
		select {
		case t.acks <- blk.Seq:
		default:
		}
		return
	}

	// a response block carries one message; its arguments run to the end
	r := NewReader(blk.Payload)
	id := r.Uint()
	if r.Err() != nil {
		return
	}
	args := make([]byte, r.Len())
	copy(args, blk.Payload[len(blk.Payload)-r.Len():])
	m := Message{Seq: blk.Seq, CmdID: uint16(id), Args: args}

	t.handlerMu.Lock()
	h := t.handler
	t.handlerMu.Unlock()
	if h != nil {
		h(m)
	}

	select {
	case t.responses <- m:
	default:
		// full: drop the oldest
		select {
		case <-t.responses:
		default:
		}
		t.responses <- m
	}
}

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
