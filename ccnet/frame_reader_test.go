package ccnet

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readerPair(t *testing.T) (*frameReader, net.Conn) {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	return newFrameReader(client), server
}

func TestFrameReaderWholeFrame(t *testing.T) {
	reader, peer := readerPair(t)

	frame, err := PackFrame(BillValidatorAddr, []byte{0x14})
	require.NoError(t, err)

	go func() { _, _ = peer.Write(frame) }()

	got, err := reader.ReadFrame(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

// A frame delivered one byte at a time must decode identically to one
// delivered in a single chunk.
func TestFrameReaderByteAtATime(t *testing.T) {
	reader, peer := readerPair(t)

	payload := make([]byte, 30)
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	frame, err := PackFrame(BillValidatorAddr, payload)
	require.NoError(t, err)

	go func() {
		for _, b := range frame {
			if _, err := peer.Write([]byte{b}); err != nil {
				return
			}
		}
	}()

	got, err := reader.ReadFrame(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestFrameReaderBackToBackFrames(t *testing.T) {
	reader, peer := readerPair(t)

	first, err := PackFrame(BillValidatorAddr, []byte{0x14})
	require.NoError(t, err)
	second, err := PackFrame(BillValidatorAddr, []byte{0x80, 0x02})
	require.NoError(t, err)

	go func() {
		_, _ = peer.Write(append(append([]byte{}, first...), second...))
	}()

	deadline := time.Now().Add(time.Second)

	got, err := reader.ReadFrame(context.Background(), deadline)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// The second frame is already buffered; no further reads needed.
	got, err = reader.ReadFrame(context.Background(), deadline)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

// A partial frame must survive a deadline expiry and complete on the next
// call.
func TestFrameReaderKeepsPartialAcrossDeadline(t *testing.T) {
	reader, peer := readerPair(t)

	frame, err := PackFrame(BillValidatorAddr, []byte{0x15, 0x01})
	require.NoError(t, err)
	half := len(frame) / 2

	go func() { _, _ = peer.Write(frame[:half]) }()

	_, err = reader.ReadFrame(context.Background(), time.Now().Add(60*time.Millisecond))
	require.ErrorIs(t, err, ErrRequestTimeout)

	go func() { _, _ = peer.Write(frame[half:]) }()

	got, err := reader.ReadFrame(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestFrameReaderTimeout(t *testing.T) {
	reader, _ := readerPair(t)

	start := time.Now()
	_, err := reader.ReadFrame(context.Background(), time.Now().Add(80*time.Millisecond))
	require.ErrorIs(t, err, ErrRequestTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestFrameReaderContextCancel(t *testing.T) {
	reader, _ := readerPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := reader.ReadFrame(ctx, time.Time{})
	require.ErrorIs(t, err, context.Canceled)
}

// An impossible length byte drops the buffered bytes so the stream can
// resynchronize on the next frame.
func TestFrameReaderInvalidLengthResync(t *testing.T) {
	reader, peer := readerPair(t)

	garbage := []byte{SYNC, BillValidatorAddr, 0x02} // length below minimum
	go func() { _, _ = peer.Write(garbage) }()

	_, err := reader.ReadFrame(context.Background(), time.Now().Add(time.Second))
	require.ErrorIs(t, err, ErrInvalidLength)

	frame, err := PackFrame(BillValidatorAddr, []byte{0x14})
	require.NoError(t, err)
	go func() { _, _ = peer.Write(frame) }()

	got, err := reader.ReadFrame(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}
