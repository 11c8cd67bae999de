package ccnet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-ccnet/internal/pool"
	"github.com/arloliu/go-ccnet/internal/queue"
	"github.com/arloliu/go-ccnet/logger"
)

// pollReadTimeout paces transport reads so the protocol loop can observe
// cancellation while waiting for response bytes. It trades off between CPU
// usage and shutdown latency.
const pollReadTimeout = 50 * time.Millisecond

// Sentinel errors for the CCNet protocol.
var (
	// Request/response errors.
	ErrRequestTimeout     = errors.New("ccnet: no response within the request timeout")
	ErrChecksumMismatch   = errors.New("ccnet: response checksum mismatch")
	ErrPeerRejected       = errors.New("ccnet: peer rejected the request frame")
	ErrUnrecognizedStatus = errors.New("ccnet: unrecognized status code")

	// Frame and payload errors.
	ErrInvalidLength  = errors.New("ccnet: invalid frame length")
	ErrResponseLength = errors.New("ccnet: unexpected response payload length")
	ErrInvalidParams  = errors.New("ccnet: invalid command parameters")

	// Link errors.
	ErrTransport = errors.New("ccnet: transport failure")
	ErrClosed    = errors.New("ccnet: device closed")
)

// StatusHandler is invoked when the classified device status changes.
//
// Handlers run on the protocol loop goroutine and must not block.
type StatusHandler func(status Status)

// ConnectHandler is invoked when the device finishes its connection
// sequence (transport open, reset, identification, bill table, firmware
// CRC).
type ConnectHandler func()

// stateWaiter is a one-shot subscription to a status change, used by
// WaitForState.
type stateWaiter struct {
	state DeviceState
	ch    chan Status
}

// Device drives one CCNet peripheral over one physical link.
//
// It owns the transport, the frame reader and the task queue exclusively;
// external interaction happens only through Execute (and the convenience
// operations built on it), status/connect handler subscriptions and
// WaitForState. At most one request is in flight at any time, and tasks
// complete in submission order.
type Device struct {
	pctx      context.Context
	ctx       context.Context
	ctxCancel context.CancelFunc
	cfg       *Config
	logger    logger.Logger

	opState atomicOpState

	transportMutex sync.RWMutex
	transport      Transport

	// taskChan hands submitted tasks to the protocol loop, which moves
	// them into its FIFO queue each tick.
	taskChan chan *task

	// Prebuilt frames for the handshake replies and the idle poll.
	ackFrame  []byte
	nakFrame  []byte
	pollFrame []byte

	statusMutex sync.RWMutex
	lastStatus  *Status

	handlerMutex    sync.Mutex
	statusHandlers  []StatusHandler
	connectHandlers []ConnectHandler

	waiters  *xsync.MapOf[uint64, *stateWaiter]
	waiterID atomic.Uint64

	wg       sync.WaitGroup
	shutdown atomic.Bool

	metrics DeviceMetrics
}

// NewDevice creates a new Device with the given parent context and
// configuration. The device starts closed; call Open to connect.
func NewDevice(ctx context.Context, cfg *Config) (*Device, error) {
	if cfg == nil {
		return nil, errors.New("ccnet: device config is nil")
	}

	d := &Device{
		pctx:    ctx,
		cfg:     cfg,
		logger:  cfg.logger,
		waiters: xsync.NewMapOf[uint64, *stateWaiter](),
	}

	// These payloads always fit a frame; PackFrame cannot fail on them.
	d.ackFrame, _ = PackFrame(cfg.address, []byte{ACK})
	d.nakFrame, _ = PackFrame(cfg.address, []byte{NAK})

	pollPayload, _ := Poll{}.BuildRequest(nil)
	d.pollFrame, _ = PackFrame(cfg.address, pollPayload)

	d.opState.Set(closedState)

	return d, nil
}

// GetLogger returns the logger associated with the device.
func (d *Device) GetLogger() logger.Logger {
	return d.logger
}

// GetMetrics returns the metrics associated with the device.
func (d *Device) GetMetrics() *DeviceMetrics {
	return &d.metrics
}

// AddStatusHandler adds one or more StatusHandler functions invoked when
// the classified device status changes.
//
// Handlers should be registered before Open is called. They are invoked
// in registration order on the protocol loop and must not block.
func (d *Device) AddStatusHandler(handlers ...StatusHandler) {
	d.handlerMutex.Lock()
	defer d.handlerMutex.Unlock()

	d.statusHandlers = append(d.statusHandlers, handlers...)
}

// AddConnectHandler adds one or more ConnectHandler functions invoked when
// the connection sequence completes.
//
// Handlers should be registered before Open is called.
func (d *Device) AddConnectHandler(handlers ...ConnectHandler) {
	d.handlerMutex.Lock()
	defer d.handlerMutex.Unlock()

	d.connectHandlers = append(d.connectHandlers, handlers...)
}

// LastStatus returns the most recently classified device status. The
// second return value is false before the first successful poll.
func (d *Device) LastStatus() (Status, bool) {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()

	if d.lastStatus == nil {
		return Status{}, false
	}

	return *d.lastStatus, true
}

// --- Lifecycle ---

// Open connects to the peripheral: it opens the transport (or adopts the
// injected one), starts the protocol loop, and runs the connection
// sequence (Reset, Identification, GetBillTable, GetCRC32OfTheCode)
// through the regular single-flight queue. Registered connect handlers
// fire once the sequence completes.
//
// Open is idempotent while the device is already open.
func (d *Device) Open() error {
	if !d.opState.ToOpening() {
		if d.opState.IsOpened() {
			return nil
		}

		return fmt.Errorf("ccnet: cannot open device in state %s", d.opState.String())
	}

	tr := d.cfg.transport
	if tr == nil {
		var err error

		tr, err = openSerialTransport(d.cfg.portName, d.cfg.baudRate)
		if err != nil {
			d.opState.Set(closedState)

			return err
		}
	}

	d.setTransport(tr)
	d.shutdown.Store(false)
	d.ctx, d.ctxCancel = context.WithCancel(d.pctx)

	// A fresh channel per session: a submission that raced a previous
	// Close past its drain must not be transmitted by this session.
	d.taskChan = make(chan *task, d.cfg.queueSize)

	d.wg.Add(1)
	go d.protocolLoop(tr)

	// Execute requires the opened state; the connection sequence runs
	// through the same queue as caller commands.
	if !d.opState.ToOpened() {
		return fmt.Errorf("ccnet: failed to set device to opened state: %s", d.opState.String())
	}

	if err := d.connectSequence(); err != nil {
		_ = d.Close()

		return err
	}

	d.logger.Info("ccnet: device connected", "port", d.cfg.portName)
	d.notifyConnect()

	return nil
}

// connectSequence brings the peripheral to a known state and reads its
// identity data.
func (d *Device) connectSequence() error {
	ctx := d.ctx

	// The validator confirms Reset with a bare ACK frame, which the
	// dispatch rules treat as handshake-only; the expiry of the poll
	// budget is therefore the normal outcome here.
	if _, err := d.Execute(ctx, Reset{}, nil, d.cfg.pollTimeout); err != nil && !errors.Is(err, ErrRequestTimeout) {
		return fmt.Errorf("ccnet: reset: %w", err)
	}

	info, err := d.Identify(ctx)
	if err != nil {
		return fmt.Errorf("ccnet: identification: %w", err)
	}

	if _, err := d.BillTable(ctx); err != nil {
		return fmt.Errorf("ccnet: bill table: %w", err)
	}

	crc, err := d.FirmwareCRC32(ctx)
	if err != nil {
		return fmt.Errorf("ccnet: firmware crc: %w", err)
	}

	d.logger.Debug("ccnet: peripheral identified",
		"part", info.PartNumber,
		"serial", info.SerialNumber,
		"firmwareCRC", fmt.Sprintf("0x%08X", crc))

	return nil
}

// Close tears the link down: the protocol loop stops, the transport is
// closed, and every queued or in-flight task fails with ErrClosed.
// Reconnection is an explicit Open call.
func (d *Device) Close() error {
	if !d.opState.ToClosing() {
		if d.opState.IsClosed() {
			return nil
		}

		return fmt.Errorf("ccnet: cannot close device in state %s", d.opState.String())
	}

	d.shutdown.Store(true)

	if d.ctxCancel != nil {
		d.ctxCancel()
	}

	// Closing the transport unblocks the protocol loop's pending read.
	if tr := d.clearTransport(); tr != nil {
		if err := tr.Close(); err != nil {
			d.logger.Error("ccnet: failed to close transport", "error", err)
		}
	}

	d.wg.Wait()
	d.dropAllWaiters()

	if !d.opState.ToClosed() {
		return fmt.Errorf("ccnet: failed to set device to closed state: %s", d.opState.String())
	}

	d.logger.Debug("ccnet: device closed")

	return nil
}

func (d *Device) setTransport(tr Transport) {
	d.transportMutex.Lock()
	defer d.transportMutex.Unlock()

	d.transport = tr
}

func (d *Device) clearTransport() Transport {
	d.transportMutex.Lock()
	defer d.transportMutex.Unlock()

	tr := d.transport
	d.transport = nil

	return tr
}

// --- Command execution ---

// Execute queues a command for transmission and blocks until its response
// is parsed, the timeout budget expires, or ctx is cancelled.
//
// timeout bounds the wait for the response frame after the request is
// written; 0 means no timeout. Commands submitted concurrently are
// serviced strictly in submission order, one at a time.
func (d *Device) Execute(ctx context.Context, cmd Command, params []byte, timeout time.Duration) (any, error) {
	if !d.opState.IsOpened() {
		return nil, ErrClosed
	}

	payload, err := cmd.BuildRequest(params)
	if err != nil {
		return nil, err
	}

	frame, err := PackFrame(d.cfg.address, payload)
	if err != nil {
		return nil, err
	}

	type result struct {
		value any
		err   error
	}

	resultChan := make(chan result, 1)
	t := newTask(cmd, frame, timeout, func(value any, err error) {
		resultChan <- result{value: value, err: err}
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.ctx.Done():
		return nil, ErrClosed
	case d.taskChan <- t:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.value, res.err
	case <-d.ctx.Done():
		// The protocol loop fails outstanding tasks on shutdown; prefer
		// its verdict when it already arrived.
		select {
		case res := <-resultChan:
			return res.value, res.err
		default:
			return nil, ErrClosed
		}
	}
}

// --- Protocol loop ---

// protocolLoop is the single thread of control for the link. One task (or
// one synthesized Poll) is dispatched per tick and run to completion, so
// at most one request is ever unacknowledged.
func (d *Device) protocolLoop(tr Transport) {
	defer d.wg.Done()

	reader := newFrameReader(tr)
	pending := queue.New[*task](d.cfg.queueSize)

	defer d.drainTasks(pending)

	ticker := time.NewTicker(d.cfg.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if !d.tickIteration(tr, reader, pending) {
				return
			}
		}
	}
}

// tickIteration performs one tick: it moves newly submitted tasks into the
// FIFO queue, then dispatches exactly one task, synthesizing a Poll when
// the queue is empty. Returns false when the loop must stop.
func (d *Device) tickIteration(tr Transport, reader *frameReader, pending *queue.FIFO[*task]) bool {
	for {
		select {
		case t := <-d.taskChan:
			pending.Enqueue(t)

			continue
		default:
		}

		break
	}

	t, ok := pending.Dequeue()
	if !ok {
		// Idle tick: poll so transient states (escrow, stacked,
		// returned) are observed at a bounded rate. The task is built
		// fresh each idle tick and never persisted.
		t = d.newPollTask()
	}

	return d.runTask(tr, reader, t)
}

// newPollTask synthesizes a Poll task whose sink feeds the status
// classifier notifications.
func (d *Device) newPollTask() *task {
	d.metrics.incPollCount()

	t := newTask(Poll{}, d.pollFrame, d.cfg.pollTimeout, func(value any, err error) {
		if err != nil {
			if errors.Is(err, ErrUnrecognizedStatus) {
				d.logger.Warn("ccnet: poll returned unknown status", "error", err)
			} else {
				d.logger.Debug("ccnet: poll failed", "error", err)
			}

			return
		}

		if status, ok := value.(Status); ok {
			d.handleStatus(status)
		}
	})
	t.poll = true

	return t
}

// runTask executes one request/response cycle: write the frame, await a
// verified response, perform the ACK/NAK handshake and complete the task.
// Returns false when the transport failed and the loop must stop.
func (d *Device) runTask(tr Transport, reader *frameReader, t *task) bool {
	if err := writeAll(tr, t.frame); err != nil {
		if d.shutdown.Load() {
			t.complete(nil, ErrClosed)

			return false
		}

		t.complete(nil, fmt.Errorf("%w: write %s: %w", ErrTransport, t.cmd.Name(), err))
		d.logger.Error("ccnet: frame write failed", "command", t.cmd.Name(), "error", err)

		return false
	}

	d.metrics.incFrameSendCount()

	var deadline time.Time
	if t.timeout > 0 {
		deadline = time.Now().Add(t.timeout)
	}

	for {
		raw, err := reader.ReadFrame(d.ctx, deadline)

		switch {
		case err == nil:

		case errors.Is(err, ErrRequestTimeout):
			if !t.poll {
				d.metrics.incCmdTimeoutCount()
			}
			t.complete(nil, fmt.Errorf("%w: %s", ErrRequestTimeout, t.cmd.Name()))

			return true

		case errors.Is(err, context.Canceled):
			t.complete(nil, ErrClosed)

			return false

		case errors.Is(err, ErrInvalidLength):
			// The stream produced an impossible length byte; refuse it
			// like any other corrupt frame.
			d.writeHandshake(tr, d.nakFrame)
			t.complete(nil, err)

			return true

		default:
			// Closing the transport is how shutdown interrupts a
			// blocked read; report that as a close, not a link fault.
			if d.shutdown.Load() {
				t.complete(nil, ErrClosed)

				return false
			}

			t.complete(nil, fmt.Errorf("%w: read: %w", ErrTransport, err))
			d.logger.Error("ccnet: frame read failed", "command", t.cmd.Name(), "error", err)

			return false
		}

		d.metrics.incFrameRecvCount()

		if err := VerifyFrame(raw); err != nil {
			d.metrics.incChecksumErrCount()
			d.writeHandshake(tr, d.nakFrame)
			t.complete(nil, err)

			return true
		}

		payload := raw[frameHeaderSize : len(raw)-checksumSize]

		if len(payload) == 1 && payload[0] == ACK {
			// Handshake only; keep waiting for the data frame within the
			// same budget.
			continue
		}

		if len(payload) == 1 && payload[0] == NAK {
			d.metrics.incPeerNakCount()
			t.complete(nil, fmt.Errorf("%w: %s", ErrPeerRejected, t.cmd.Name()))

			return true
		}

		d.writeHandshake(tr, d.ackFrame)

		value, perr := t.cmd.ParseResponse(payload)
		if perr != nil && !t.poll {
			d.metrics.incCmdErrCount()
		}
		t.complete(value, perr)

		return true
	}
}

// writeHandshake sends a prebuilt ACK or NAK frame. Handshake write
// failures are logged but never fail the task; the response verdict has
// already been reached.
func (d *Device) writeHandshake(tr Transport, frame []byte) {
	if err := writeAll(tr, frame); err != nil {
		d.logger.Error("ccnet: failed to send handshake", "error", err)
	}
}

// drainTasks fails everything still queued with ErrClosed: first the
// loop's FIFO, then tasks parked in the submission channel.
func (d *Device) drainTasks(pending *queue.FIFO[*task]) {
	for {
		t, ok := pending.Dequeue()
		if !ok {
			break
		}

		t.complete(nil, ErrClosed)
	}

	for {
		select {
		case t := <-d.taskChan:
			t.complete(nil, ErrClosed)
		default:
			return
		}
	}
}

func writeAll(tr Transport, data []byte) error {
	for written := 0; written < len(data); {
		n, err := tr.Write(data[written:])
		written += n

		if err != nil {
			return err
		}
	}

	return nil
}

// --- Status notifications ---

// handleStatus records a classified poll result and, when the status
// changed, notifies handlers and waiters.
func (d *Device) handleStatus(status Status) {
	d.statusMutex.Lock()
	changed := d.lastStatus == nil || d.lastStatus.Code != status.Code
	if changed {
		s := status
		d.lastStatus = &s
	}
	d.statusMutex.Unlock()

	if !changed {
		return
	}

	d.metrics.incStatusChangeCount()
	d.logger.Debug("ccnet: status changed",
		"code", status.Code.String(),
		"state", status.State.String())

	d.handlerMutex.Lock()
	handlers := make([]StatusHandler, len(d.statusHandlers))
	copy(handlers, d.statusHandlers)
	d.handlerMutex.Unlock()

	for _, handler := range handlers {
		handler(status)
	}

	d.notifyWaiters(status)
}

func (d *Device) notifyConnect() {
	d.handlerMutex.Lock()
	handlers := make([]ConnectHandler, len(d.connectHandlers))
	copy(handlers, d.connectHandlers)
	d.handlerMutex.Unlock()

	for _, handler := range handlers {
		handler()
	}
}

// --- Waiting primitive ---

// WaitForState blocks until the classified device status reaches the
// given state, the timeout expires (0 = no timeout), or ctx is cancelled.
// It returns immediately when the last observed status already matches.
//
// The wait rides on the status notifications produced by idle polling; it
// never touches the task queue.
func (d *Device) WaitForState(ctx context.Context, state DeviceState, timeout time.Duration) (Status, error) {
	if !d.opState.IsOpened() {
		return Status{}, ErrClosed
	}

	if last, ok := d.LastStatus(); ok && last.State == state {
		return last, nil
	}

	w := &stateWaiter{state: state, ch: make(chan Status, 1)}
	id := d.waiterID.Add(1)
	d.waiters.Store(id, w)
	defer d.waiters.Delete(id)

	// The status may have reached the target between the check above and
	// the registration; a persistent state would never re-notify, so
	// check again now that the waiter is visible to notifyWaiters.
	if last, ok := d.LastStatus(); ok && last.State == state {
		return last, nil
	}

	var timerChan <-chan time.Time
	if timeout > 0 {
		timer := pool.GetTimer(timeout)
		defer pool.PutTimer(timer)
		timerChan = timer.C
	}

	select {
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-d.ctx.Done():
		return Status{}, ErrClosed
	case <-timerChan:
		return Status{}, fmt.Errorf("%w: waiting for state %s", ErrRequestTimeout, state)
	case status := <-w.ch:
		return status, nil
	}
}

func (d *Device) notifyWaiters(status Status) {
	d.waiters.Range(func(_ uint64, w *stateWaiter) bool {
		if w.state == status.State {
			select {
			case w.ch <- status:
			default:
			}
		}

		return true
	})
}

// dropAllWaiters clears the registry on shutdown. The waiters themselves
// unblock through the cancelled device context.
func (d *Device) dropAllWaiters() {
	d.waiters.Range(func(id uint64, _ *stateWaiter) bool {
		d.waiters.Delete(id)

		return true
	})
}
