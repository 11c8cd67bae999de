package ccnet

import (
	"encoding/binary"
	"fmt"
)

// SYNC is the fixed first byte of every CCNet frame.
const SYNC byte = 0x02

// BillValidatorAddr is the CCNet peripheral address of a bill validator.
const BillValidatorAddr byte = 0x03

// frameHeaderSize is the fixed size of the frame header (sync, address, length).
const frameHeaderSize = 3

// checksumSize is the size of the trailing CRC in bytes.
const checksumSize = 2

// frameOverhead is the number of non-payload bytes in a frame.
const frameOverhead = frameHeaderSize + checksumSize

// MinFrameLength is the minimum valid Length byte value (header, one
// payload byte, checksum).
const MinFrameLength = frameOverhead + 1

// MaxFrameLength is the maximum valid Length byte value.
const MaxFrameLength = 0xFF

// CCNet handshake payload markers.
//
// A response whose payload is the single byte ACK confirms correct
// reception of the previous frame; NAK rejects it.
const (
	// ACK (Correct Reception) acknowledges the most recently received frame.
	ACK byte = 0x00

	// NAK (Incorrect Reception) rejects the most recently received frame.
	NAK byte = 0xFF
)

// PackFrame serializes a payload into its wire format:
//
//	[SYNC][addr][length][payload][CRC16 little-endian]
//
// where length counts the whole frame, header and checksum included.
// The payload must hold at least one byte (the command code or a
// handshake marker) and fit the single length byte.
func PackFrame(addr byte, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidLength)
	}

	total := frameOverhead + len(payload)
	if total > MaxFrameLength {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds frame capacity", ErrInvalidLength, len(payload))
	}

	buf := make([]byte, total)
	buf[0] = SYNC
	buf[1] = addr
	buf[2] = byte(total)
	copy(buf[frameHeaderSize:], payload)

	binary.LittleEndian.PutUint16(buf[total-checksumSize:], Checksum(buf[:total-checksumSize]))

	return buf, nil
}

// VerifyFrame validates a complete raw frame: the length byte must match
// the buffer size and the trailing CRC must match the checksum recomputed
// over everything before it.
func VerifyFrame(raw []byte) error {
	if len(raw) < MinFrameLength {
		return fmt.Errorf("%w: got %d bytes, want at least %d", ErrInvalidLength, len(raw), MinFrameLength)
	}

	if int(raw[2]) != len(raw) {
		return fmt.Errorf("%w: length byte %d, buffer %d bytes", ErrInvalidLength, raw[2], len(raw))
	}

	wire := binary.LittleEndian.Uint16(raw[len(raw)-checksumSize:])
	calc := Checksum(raw[:len(raw)-checksumSize])
	if wire != calc {
		return fmt.Errorf("%w: wire=0x%04X, computed=0x%04X", ErrChecksumMismatch, wire, calc)
	}

	return nil
}

// ParseFrame verifies a raw frame and returns a copy of its payload
// (the frame minus header and checksum).
func ParseFrame(raw []byte) ([]byte, error) {
	if err := VerifyFrame(raw); err != nil {
		return nil, err
	}

	payload := make([]byte, len(raw)-frameOverhead)
	copy(payload, raw[frameHeaderSize:len(raw)-checksumSize])

	return payload, nil
}
