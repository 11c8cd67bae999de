package ccnet

import (
	"sync/atomic"
)

// DeviceMetrics contains atomic metrics for a Device.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type DeviceMetrics struct {
	// FrameSendCount indicates the number of request frames written.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of complete frames received.
	FrameRecvCount atomic.Uint64
	// ChecksumErrCount indicates the number of inbound frames that failed
	// checksum verification (each answered with a NAK).
	ChecksumErrCount atomic.Uint64
	// PeerNakCount indicates the number of requests the peripheral rejected.
	PeerNakCount atomic.Uint64

	// CmdTimeoutCount indicates the number of requests that expired without
	// a response.
	CmdTimeoutCount atomic.Uint64
	// CmdErrCount indicates the number of responses that failed parsing.
	CmdErrCount atomic.Uint64

	// PollCount indicates the number of idle-tick Poll requests synthesized.
	PollCount atomic.Uint64
	// StatusChangeCount indicates the number of observed status transitions.
	StatusChangeCount atomic.Uint64
}

func (m *DeviceMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *DeviceMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *DeviceMetrics) incChecksumErrCount() {
	m.ChecksumErrCount.Add(1)
}

func (m *DeviceMetrics) incPeerNakCount() {
	m.PeerNakCount.Add(1)
}

func (m *DeviceMetrics) incCmdTimeoutCount() {
	m.CmdTimeoutCount.Add(1)
}

func (m *DeviceMetrics) incCmdErrCount() {
	m.CmdErrCount.Add(1)
}

func (m *DeviceMetrics) incPollCount() {
	m.PollCount.Add(1)
}

func (m *DeviceMetrics) incStatusChangeCount() {
	m.StatusChangeCount.Add(1)
}
