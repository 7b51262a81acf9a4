package protocol

// CRC16 computes the block checksum (CRC-16/MCRF4XX: poly 0x1021 reflected,
// init 0xFFFF, no final xor)
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		w := uint16(b)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}

// AppendCRC16 appends the big-endian checksum of data to dst
func AppendCRC16(dst, data []byte) []byte {
	crc := CRC16(data)
	return append(dst, byte(crc>>8), byte(crc))
}
