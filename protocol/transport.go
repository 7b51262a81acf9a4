package protocol

// Handler processes one command. It must decode exactly its own arguments
// from args.
type Handler func(cmdID uint16, args *Reader) error

// Transport is the controller side of the link. It validates incoming
// blocks, dispatches their commands in order, acknowledges every block and
// frames outgoing responses. Not safe for concurrent use; the firmware main
// loop owns it.
type Transport struct {
	framer  Framer
	nextSeq uint8
	write   func([]byte)
	handler Handler

	args    Reader
	payload []byte
	block   []byte

	resetCallback func()
	errorCallback func(cmdID uint16, err error)
}

// NewTransport creates a Transport that emits bytes through write. write
// must not retain the slice.
func NewTransport(write func([]byte), handler Handler) *Transport {
	return &Transport{
		framer:  Framer{CheckSeq: true},
		nextSeq: SeqDest,
		write:   write,
		handler: handler,
		payload: make([]byte, 0, PayloadMax),
		block:   make([]byte, 0, BlockMax),
	}
}

// Receive consumes as many complete blocks from data as possible and
// returns the number of bytes used
func (t *Transport) Receive(data []byte) int {
	used := 0
	for {
		blk, n, res := t.framer.Scan(data[used:])
		used += n
		switch res {
		case ScanIncomplete:
			return used
		case ScanResync:
			t.sendAck()
		case ScanBlock:
			t.receiveBlock(blk)
		}
	}
}

func (t *Transport) receiveBlock(blk Block) {
	if blk.Seq == SeqDest && t.nextSeq != SeqDest {
		// host restarted its sequence
		t.nextSeq = SeqDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}
	if blk.Seq == t.nextSeq {
		t.nextSeq = NextSeq(blk.Seq)
		t.dispatch(blk.Payload)
	}
	// a mismatched sequence is answered with the expected one (NAK)
	t.sendAck()
}

func (t *Transport) dispatch(payload []byte) {
	t.args.Reset(payload)
	for t.args.Len() > 0 {
		id := t.args.Uint()
		if t.args.Err() != nil {
			return
		}
		if err := t.handler(uint16(id), &t.args); err != nil {
			if t.errorCallback != nil {
				t.errorCallback(uint16(id), err)
			}
			return
		}
	}
}

func (t *Transport) sendAck() {
	t.block, _ = AppendBlock(t.block[:0], t.nextSeq, nil)
	t.write(t.block)
}

// Send frames one response. args appends the encoded arguments to its input
// and may be nil.
func (t *Transport) Send(cmdID uint16, args func(dst []byte) []byte) error {
	p := AppendVLQUint(t.payload[:0], uint32(cmdID))
	if args != nil {
		p = args(p)
	}
	t.payload = p[:0]

	var err error
	t.block, err = AppendBlock(t.block[:0], t.nextSeq, p)
	if err != nil {
		return err
	}
	t.write(t.block)
	return nil
}

// Reset forgets the host sequence, as after a USB reconnect
func (t *Transport) Reset() {
	t.framer.Reset()
	t.nextSeq = SeqDest
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a function called when the host restarts its sequence
func (t *Transport) SetResetCallback(cb func()) {
	t.resetCallback = cb
}

// SetErrorCallback sets a function called when a handler fails
func (t *Transport) SetErrorCallback(cb func(cmdID uint16, err error)) {
	t.errorCallback = cb
}

// Synced reports whether the receive side is aligned on block boundaries
func (t *Transport) Synced() bool {
	return t.framer.Synced()
}
