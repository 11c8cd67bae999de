// Package ccnet implements the CCNet protocol used by cash-handling
// peripherals (bill validators) over a serial line.
//
// CCNet is a half-duplex, framed request/response protocol. The controller
// is always the initiator: it sends a command frame and the peripheral
// answers with a response frame, a bare ACK, or a bare NAK. Because the
// peripheral never speaks unprompted, the driver polls it at a bounded
// rate whenever no caller-initiated command is pending, which is how
// transient states (bill in escrow, bill stacked, bill returned) are
// discovered.
//
// # Frame Format
//
// Every frame on the wire is:
//
//	[SYNC(1)][ADDR(1)][LENGTH(1)][PAYLOAD(LENGTH-5)][CRC16(2, little-endian)]
//
// SYNC is the fixed constant 0x02; ADDR identifies the peripheral class
// (0x03 for bill validators); LENGTH counts the whole frame including the
// header and checksum. A payload of the single byte 0x00 is the ACK
// handshake marker, 0xFF the NAK marker.
//
// # Dispatch Discipline
//
// A [Device] keeps at most one request in flight. Commands submitted with
// [Device.Execute] enter a FIFO queue; a tick-driven protocol loop
// (default 100ms) dispatches one task per tick, so completions follow
// submission order. When the queue is empty the loop synthesizes a Poll
// whose classified result feeds the status notification machinery.
//
// No retry is attempted above the ACK/NAK handshake; retry policy belongs
// to the caller.
package ccnet
