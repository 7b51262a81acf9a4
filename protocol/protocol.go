// Package protocol implements the framed serial link between the servo
// controller and a host.
//
// A block on the wire is
//
//	<len> <seq> <payload...> <crc_hi> <crc_lo> 0x7E
//
// where len counts the whole block and the CRC covers len, seq and payload.
// A payload is a sequence of commands, each a VLQ command id followed by its
// VLQ-encoded arguments. A block with an empty payload is an ACK (or NAK).
package protocol

// Version is the wire protocol version reported by identify
const Version = "0.1.0"

const (
	BlockHeaderSize  = 2
	BlockTrailerSize = 3
	BlockMin         = BlockHeaderSize + BlockTrailerSize
	BlockMax         = 64
	PayloadMax       = BlockMax - BlockMin

	SyncByte = 0x7E
	SeqDest  = 0x10
	SeqMask  = 0x0F
)

// NextSeq returns the sequence byte that follows seq
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & SeqMask) | SeqDest
}
