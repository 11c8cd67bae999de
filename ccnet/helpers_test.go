package ccnet

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-ccnet/logger"
)

// validatorSim plays the peripheral side of a net.Pipe link. It reads
// frames from the controller, records command codes and handshake markers,
// and answers from a per-command script.
type validatorSim struct {
	conn net.Conn

	// script maps a command code to the response payload, sent as a
	// checksummed data frame. rawScript maps a command code to bytes
	// written verbatim, for corrupt or handshake-only responses. Commands
	// in neither map get no response at all. mu guards both maps; tests
	// reprogram responses while the read loop runs.
	mu        sync.Mutex
	script    map[byte][]byte
	rawScript map[byte][]byte

	// received collects command codes in arrival order; handshakes
	// collects the controller's ACK/NAK markers.
	received   chan byte
	handshakes chan byte

	done chan struct{}
}

func newValidatorSim(conn net.Conn) *validatorSim {
	sim := &validatorSim{
		conn:       conn,
		script:     make(map[byte][]byte),
		rawScript:  make(map[byte][]byte),
		received:   make(chan byte, 128),
		handshakes: make(chan byte, 128),
		done:       make(chan struct{}),
	}

	// Canned connection sequence plus an idle poll answer. Individual
	// tests override entries with respond*.
	sim.script[CmdIdentification] = testIdentPayload()
	sim.script[CmdGetBillTable] = testBillTablePayload()
	sim.script[CmdGetCRC32OfTheCode] = []byte{0x78, 0x56, 0x34, 0x12}
	sim.script[CmdPoll] = []byte{0x14} // idling
	frame, _ := PackFrame(BillValidatorAddr, []byte{ACK})
	sim.rawScript[CmdReset] = frame

	go sim.run()

	return sim
}

// respond scripts a checksummed data frame with the given payload.
func (sim *validatorSim) respond(code byte, payload []byte) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	delete(sim.rawScript, code)
	sim.script[code] = payload
}

// respondRaw scripts bytes written verbatim, for handshake-only or
// multi-frame responses.
func (sim *validatorSim) respondRaw(code byte, raw []byte) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	delete(sim.script, code)
	sim.rawScript[code] = raw
}

// respondAck scripts a bare ACK frame for the command, the way a real
// validator confirms commands that carry no response data.
func (sim *validatorSim) respondAck(code byte) {
	frame, _ := PackFrame(BillValidatorAddr, []byte{ACK})
	sim.respondRaw(code, frame)
}

// respondNak scripts a bare NAK frame for the command.
func (sim *validatorSim) respondNak(code byte) {
	frame, _ := PackFrame(BillValidatorAddr, []byte{NAK})
	sim.respondRaw(code, frame)
}

// respondCorrupt scripts a data frame whose checksum is wrong.
func (sim *validatorSim) respondCorrupt(code byte, payload []byte) {
	frame, _ := PackFrame(BillValidatorAddr, payload)
	frame[len(frame)-1] ^= 0xA5
	sim.respondRaw(code, frame)
}

// silence removes any scripted response so the command gets none.
func (sim *validatorSim) silence(code byte) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	delete(sim.script, code)
	delete(sim.rawScript, code)
}

func (sim *validatorSim) run() {
	defer close(sim.done)

	reader := newFrameReader(sim.conn)

	for {
		raw, err := reader.ReadFrame(context.Background(), time.Time{})
		if err != nil {
			return
		}

		payload, err := ParseFrame(raw)
		if err != nil {
			continue
		}

		if len(payload) == 1 && (payload[0] == ACK || payload[0] == NAK) {
			// Drop on overflow so a long-polling test never stalls the
			// read loop.
			select {
			case sim.handshakes <- payload[0]:
			default:
			}

			continue
		}

		code := payload[0]
		select {
		case sim.received <- code:
		default:
		}

		sim.mu.Lock()
		rawResp, rawOK := sim.rawScript[code]
		resp, dataOK := sim.script[code]
		sim.mu.Unlock()

		if rawOK {
			if _, err := sim.conn.Write(rawResp); err != nil {
				return
			}

			continue
		}

		if dataOK {
			frame, _ := PackFrame(BillValidatorAddr, resp)
			if _, err := sim.conn.Write(frame); err != nil {
				return
			}
		}
	}
}

// waitHandshake returns the next ACK/NAK marker the controller sent.
func (sim *validatorSim) waitHandshake(t *testing.T) byte {
	t.Helper()

	select {
	case marker := <-sim.handshakes:
		return marker
	case <-time.After(time.Second):
		t.Fatal("no handshake from controller")

		return 0
	}
}

func testIdentPayload() []byte {
	payload := make([]byte, identificationSize)
	copy(payload[0:15], "CASHCODE-SM-USD")
	copy(payload[15:27], "0000123456  ")
	copy(payload[27:34], []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00, 0x01})

	return payload
}

// testBillTablePayload builds a table with USD 1 in slot 0, USD 5 in slot
// 2 and USD 100 in slot 5.
func testBillTablePayload() []byte {
	payload := make([]byte, billTypeCount*billRecordSize)

	put := func(slot int, first byte, country string, exp byte) {
		record := payload[slot*billRecordSize : (slot+1)*billRecordSize]
		record[0] = first
		copy(record[1:4], country)
		record[4] = exp
	}

	put(0, 1, "USA", 0)
	put(2, 5, "USA", 0)
	put(5, 1, "USA", 2)

	return payload
}

// newTestDevice creates a Device wired to a validatorSim over net.Pipe,
// with short intervals so tests run quickly.
func newTestDevice(t *testing.T, opts ...Option) (*Device, *validatorSim) {
	t.Helper()

	client, server := net.Pipe()

	base := []Option{
		WithTransport(client),
		WithTickInterval(MinTickInterval),
		WithPollTimeout(60 * time.Millisecond),
		WithDefaultTimeout(200 * time.Millisecond),
		WithLogger(logger.NewSlog(logger.ErrorLevel, false)),
	}

	cfg, err := NewConfig("", append(base, opts...)...)
	require.NoError(t, err)

	device, err := NewDevice(context.Background(), cfg)
	require.NoError(t, err)

	sim := newValidatorSim(server)

	t.Cleanup(func() {
		_ = device.Close()
		_ = server.Close()
		<-sim.done
	})

	return device, sim
}
