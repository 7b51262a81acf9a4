package protocol

import "errors"

var ErrPayloadTooLong = errors.New("protocol: payload exceeds block size")

// Block is one validated block. Payload aliases the scanned data.
type Block struct {
	Seq     uint8
	Payload []byte
}

// IsAck reports whether the block carries no commands
func (b Block) IsAck() bool {
	return len(b.Payload) == 0
}

// AppendBlock frames payload with seq and appends it to dst
func AppendBlock(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMax {
		return dst, ErrPayloadTooLong
	}
	start := len(dst)
	dst = append(dst, byte(len(payload)+BlockMin), seq)
	dst = append(dst, payload...)
	dst = AppendCRC16(dst, dst[start:])
	return append(dst, SyncByte), nil
}

// ScanResult says what Framer.Scan found
type ScanResult uint8

const (
	ScanIncomplete ScanResult = iota // no complete block yet
	ScanBlock                        // a valid block was returned
	ScanResync                       // the stream regained sync after corrupt data
)

// Framer splits a byte stream into blocks. After a corrupt block it drops
// data up to the next sync byte.
type Framer struct {
	// CheckSeq, when set, requires the seq byte to carry SeqDest
	// (host to controller direction)
	CheckSeq bool

	lost    bool
	Dropped uint32 // bytes discarded while out of sync
}

// Scan looks for the next block at the start of data. It returns how many
// bytes of data were consumed, which may be nonzero even when no block is
// returned.
func (f *Framer) Scan(data []byte) (blk Block, consumed int, res ScanResult) {
	for consumed < len(data) {
		rest := data[consumed:]
		if f.lost {
			i := indexSync(rest)
			if i < 0 {
				f.Dropped += uint32(len(rest))
				return blk, len(data), ScanIncomplete
			}
			f.Dropped += uint32(i + 1)
			f.lost = false
			return blk, consumed + i + 1, ScanResync
		}

		if rest[0] == SyncByte {
			consumed++
			continue
		}
		if len(rest) < BlockMin {
			return blk, consumed, ScanIncomplete
		}
		n := int(rest[0])
		if n < BlockMin || n > BlockMax {
			f.lost = true
			continue
		}
		if f.CheckSeq && rest[1]&^SeqMask != SeqDest {
			f.lost = true
			continue
		}
		if len(rest) < n {
			return blk, consumed, ScanIncomplete
		}
		if rest[n-1] != SyncByte {
			f.lost = true
			continue
		}
		crc := uint16(rest[n-3])<<8 | uint16(rest[n-2])
		if crc != CRC16(rest[:n-BlockTrailerSize]) {
			f.lost = true
			continue
		}
		blk = Block{Seq: rest[1], Payload: rest[BlockHeaderSize : n-BlockTrailerSize]}
		return blk, consumed + n, ScanBlock
	}
	return blk, consumed, ScanIncomplete
}

// Synced reports whether the framer is aligned on block boundaries
func (f *Framer) Synced() bool {
	return !f.lost
}

// Reset returns the framer to the synced state
func (f *Framer) Reset() {
	f.lost = false
}

func indexSync(b []byte) int {
	for i, c := range b {
		if c == SyncByte {
			return i
		}
	}
	return -1
}
