package ccnet

import (
	"fmt"
)

// CCNet command codes for bill validators.
const (
	CmdReset             byte = 0x30
	CmdGetStatus         byte = 0x31
	CmdSetSecurity       byte = 0x32
	CmdPoll              byte = 0x33
	CmdEnableBillTypes   byte = 0x34
	CmdStack             byte = 0x35
	CmdReturn            byte = 0x36
	CmdIdentification    byte = 0x37
	CmdHold              byte = 0x38
	CmdGetBillTable      byte = 0x41
	CmdGetCRC32OfTheCode byte = 0x51
)

// Command describes one CCNet operation: how to build its request payload
// and how to interpret the verified response payload.
//
// Commands are stateless and shared; all per-invocation state lives in the
// task created by [Device.Execute]. Framing (header and checksum) is
// applied uniformly by the engine, so BuildRequest returns only the
// command code and its arguments.
type Command interface {
	// Code returns the command code, the first byte of the request payload.
	Code() byte

	// Name returns the command name used in logs and errors.
	Name() string

	// BuildRequest builds the request payload (command code plus argument
	// bytes) from the given parameters.
	BuildRequest(params []byte) ([]byte, error)

	// ParseResponse interprets a verified response payload into a typed
	// value, or fails with a parsing error.
	ParseResponse(payload []byte) (any, error)
}

// buildRequest assembles a code-prefixed payload, enforcing the command's
// exact parameter size.
func buildRequest(cmd Command, params []byte, want int) ([]byte, error) {
	if len(params) != want {
		return nil, fmt.Errorf("%w: %s expects %d parameter bytes, got %d",
			ErrInvalidParams, cmd.Name(), want, len(params))
	}

	payload := make([]byte, 0, 1+len(params))
	payload = append(payload, cmd.Code())

	return append(payload, params...), nil
}

// Ack is the single-byte handshake confirming correct reception of the
// peripheral's last frame. The engine sends it automatically after every
// verified data response; it is exposed as a command for completeness.
type Ack struct{}

func (Ack) Code() byte   { return ACK }
func (Ack) Name() string { return "Ack" }

func (c Ack) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

// ParseResponse always succeeds with no value; a handshake elicits no
// response of its own.
func (Ack) ParseResponse(_ []byte) (any, error) {
	return nil, nil
}

// Nak is the single-byte handshake rejecting the peripheral's last frame,
// sent by the engine when checksum verification fails.
type Nak struct{}

func (Nak) Code() byte   { return NAK }
func (Nak) Name() string { return "Nak" }

func (c Nak) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

// ParseResponse always succeeds with no value; a handshake elicits no
// response of its own.
func (Nak) ParseResponse(_ []byte) (any, error) {
	return nil, nil
}
