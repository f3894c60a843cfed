package swd

// Dormant-state activation sequence (spec §4.1/§6, ADIv6). Used on
// Connect to bring the target's debug port into SWD protocol mode
// regardless of whatever state it was left in.

// selectionAlert is the fixed 128-bit ADIv6 selection-alert constant,
// sent LSB-first.
var selectionAlert = [16]byte{
	0x92, 0xf3, 0x09, 0x62, 0x95, 0x2d, 0x85, 0x86,
	0xe9, 0xaf, 0xdd, 0xe3, 0xa2, 0x0e, 0xbc, 0x19,
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// connectSequence pushes the full dormant→SWD activation handshake,
// bit-exact per spec §6:
//
//	(a) 7×0xFF then 0xBC 0xE3                  (JTAG→dormant)
//	(b) 0xFF then the 16-byte selectionAlert
//	    then 0xA0 0xF1 0xFF then 8×0xFF then 0x00  (dormant→SWD)
func (e *Engine) connectSequence() {
	e.pushBytes(bytesOf(0xFF, 7))
	e.pushBytes([]byte{0xBC, 0xE3})

	e.pushBytes([]byte{0xFF})
	e.pushBytes(selectionAlert[:])
	e.pushBytes([]byte{0xA0, 0xF1, 0xFF})
	e.pushBytes(bytesOf(0xFF, 8))
	e.pushBytes([]byte{0x00})
}

// pushBytes shifts out bytes LSB-first, bit by bit, through the wire
// primitive shared with the request/ack/data framing.
func (e *Engine) pushBytes(bs []byte) {
	for _, b := range bs {
		for i := 0; i < 8; i++ {
			e.pushBit((b >> i) & 1)
		}
	}
}
