package ccnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// readChunkSize is the scratch buffer size for transport reads.
const readChunkSize = 64

// frameReader assembles complete CCNet frames from the transport's byte
// stream.
//
// The stream may be chunked arbitrarily: a partial frame left over from a
// short read, or from an expired deadline, is preserved and resumed on the
// next call. The reader does not verify checksums or interpret payloads;
// both are the engine's responsibility.
//
// Not goroutine-safe. The protocol loop is the only caller, consistent
// with the half-duplex nature of the link.
type frameReader struct {
	tr      Transport
	buf     []byte
	scratch [readChunkSize]byte
}

func newFrameReader(tr Transport) *frameReader {
	return &frameReader{
		tr:  tr,
		buf: make([]byte, 0, readChunkSize),
	}
}

// ReadFrame returns the next complete frame, unsliced (header, payload and
// checksum included).
//
// The deadline bounds the total wait; a zero deadline means no limit.
// Reads are paced in pollReadTimeout steps so ctx cancellation is observed
// while the line is silent. Returns ErrRequestTimeout when the deadline
// expires and ErrInvalidLength when the length byte cannot describe a
// valid frame (the buffered bytes are dropped to resynchronize).
func (fr *frameReader) ReadFrame(ctx context.Context, deadline time.Time) ([]byte, error) {
	for {
		if frame, ok, err := fr.takeFrame(); err != nil {
			return nil, err
		} else if ok {
			return frame, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, ErrRequestTimeout
		}

		readDeadline := time.Now().Add(pollReadTimeout)
		if !deadline.IsZero() && deadline.Before(readDeadline) {
			readDeadline = deadline
		}

		if err := fr.tr.SetReadDeadline(readDeadline); err != nil {
			return nil, err
		}

		n, err := fr.tr.Read(fr.scratch[:])
		fr.buf = append(fr.buf, fr.scratch[:n]...)

		if err != nil && !isTimeoutError(err) {
			return nil, err
		}
	}
}

// takeFrame extracts a complete frame from the head of the buffer, if one
// is present.
func (fr *frameReader) takeFrame() ([]byte, bool, error) {
	if len(fr.buf) < frameHeaderSize {
		return nil, false, nil
	}

	length := int(fr.buf[2])
	if length < MinFrameLength {
		// The stream is desynchronized; drop what we have and resume
		// from the next bytes.
		fr.buf = fr.buf[:0]

		return nil, false, fmt.Errorf("%w: length byte %d below minimum %d", ErrInvalidLength, length, MinFrameLength)
	}

	if len(fr.buf) < length {
		return nil, false, nil
	}

	frame := make([]byte, length)
	copy(frame, fr.buf[:length])
	fr.buf = fr.buf[:copy(fr.buf, fr.buf[length:])]

	return frame, true, nil
}

// isTimeoutError reports whether err is a read-deadline expiry rather than
// a transport failure.
func isTimeoutError(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}
