package protocol

import (
	"bytes"
	"testing"
)

func mustBlock(t *testing.T, seq uint8, payload []byte) []byte {
	t.Helper()
	b, err := AppendBlock(nil, seq, payload)
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	return b
}

func TestAppendBlockLayout(t *testing.T) {
	b := mustBlock(t, SeqDest|3, []byte{0x01, 0x02})
	if len(b) != 7 {
		t.Fatalf("Expected 7 bytes, got %d", len(b))
	}
	if b[0] != 7 || b[1] != SeqDest|3 {
		t.Errorf("Bad header: %X", b[:2])
	}
	if b[6] != SyncByte {
		t.Errorf("Expected trailing sync, got 0x%02X", b[6])
	}
	crc := CRC16(b[:4])
	if b[4] != byte(crc>>8) || b[5] != byte(crc) {
		t.Errorf("Bad CRC bytes %X, expected %04X", b[4:6], crc)
	}

	if _, err := AppendBlock(nil, SeqDest, make([]byte, PayloadMax+1)); err != ErrPayloadTooLong {
		t.Errorf("Expected ErrPayloadTooLong, got %v", err)
	}
}

func TestFramerScan(t *testing.T) {
	payload := []byte{0x05, 0x10, 0x20}
	block := mustBlock(t, SeqDest, payload)

	var f Framer
	blk, n, res := f.Scan(block)
	if res != ScanBlock {
		t.Fatalf("Expected ScanBlock, got %d", res)
	}
	if n != len(block) {
		t.Errorf("Expected %d consumed, got %d", len(block), n)
	}
	if blk.Seq != SeqDest || !bytes.Equal(blk.Payload, payload) {
		t.Errorf("Unexpected block %+v", blk)
	}
}

func TestFramerPartial(t *testing.T) {
	block := mustBlock(t, SeqDest, []byte{1, 2, 3})

	var f Framer
	for cut := 0; cut < len(block); cut++ {
		_, n, res := f.Scan(block[:cut])
		if res != ScanIncomplete || n != 0 {
			t.Errorf("Cut %d: expected incomplete with 0 consumed, got %d/%d", cut, res, n)
		}
	}
}

func TestFramerSkipsLeadingSync(t *testing.T) {
	data := append([]byte{SyncByte, SyncByte}, mustBlock(t, SeqDest, nil)...)
	var f Framer
	blk, n, res := f.Scan(data)
	if res != ScanBlock || n != len(data) || !blk.IsAck() {
		t.Errorf("Expected ack block consuming %d, got res=%d n=%d", len(data), res, n)
	}
}

func TestFramerResync(t *testing.T) {
	good := mustBlock(t, SeqDest|1, []byte{9})
	bad := mustBlock(t, SeqDest, []byte{1, 2})
	if CRC16(bad[:4]) == 0 {
		t.Skip("fixture CRC collides with the corruption pattern")
	}
	bad[4], bad[5] = 0, 0

	data := append(bad, good...)
	var f Framer

	_, n, res := f.Scan(data)
	if res != ScanResync {
		t.Fatalf("Expected ScanResync, got %d", res)
	}
	if n != len(bad) {
		t.Errorf("Expected to drop the corrupt block (%d bytes), dropped %d", len(bad), n)
	}
	if !f.Synced() {
		t.Errorf("Expected framer to be synced after resync")
	}

	blk, m, res := f.Scan(data[n:])
	if res != ScanBlock || m != len(good) || blk.Seq != SeqDest|1 {
		t.Errorf("Expected the good block after resync, got res=%d m=%d %+v", res, m, blk)
	}
}

func TestFramerGarbage(t *testing.T) {
	var f Framer
	_, n, res := f.Scan([]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x00})
	if res != ScanIncomplete || n != 6 {
		t.Errorf("Expected all garbage dropped, got res=%d n=%d", res, n)
	}
	if f.Synced() {
		t.Errorf("Expected framer to stay out of sync until a sync byte")
	}
	if f.Dropped != 6 {
		t.Errorf("Expected 6 dropped bytes, got %d", f.Dropped)
	}
}

func TestFramerCheckSeq(t *testing.T) {
	f := Framer{CheckSeq: true}
	_, _, res := f.Scan(mustBlock(t, 0x03, nil))
	if res == ScanBlock {
		t.Errorf("Expected block without SeqDest to be rejected")
	}
}

func TestNextSeq(t *testing.T) {
	if got := NextSeq(SeqDest); got != SeqDest|1 {
		t.Errorf("Expected 0x11, got 0x%02X", got)
	}
	if got := NextSeq(SeqDest | 0x0F); got != SeqDest {
		t.Errorf("Expected wrap to 0x10, got 0x%02X", got)
	}
}

func TestBuffer(t *testing.T) {
	b := NewBuffer(8)
	if n := b.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Errorf("Expected 5 written, got %d", n)
	}
	if n := b.Write([]byte{6, 7, 8, 9}); n != 3 {
		t.Errorf("Expected 3 written when full, got %d", n)
	}
	if b.Free() != 0 {
		t.Errorf("Expected no free space, got %d", b.Free())
	}

	b.Discard(2)
	if !bytes.Equal(b.Bytes(), []byte{3, 4, 5, 6, 7, 8}) {
		t.Errorf("Unexpected contents after discard: %v", b.Bytes())
	}

	b.Discard(100)
	if b.Len() != 0 {
		t.Errorf("Expected empty buffer, got %d bytes", b.Len())
	}
}
