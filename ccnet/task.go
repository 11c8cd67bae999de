package ccnet

import (
	"sync"
	"time"
)

// task is one queued request awaiting exactly one response.
//
// It carries the fully framed outbound bytes, the originating command (for
// response parsing and log context), a timeout budget (0 = no timeout) and
// a completion sink. The sink is invoked exactly once, on success, failure
// or shutdown, whichever comes first.
type task struct {
	cmd     Command
	frame   []byte
	timeout time.Duration

	// poll marks engine-synthesized Poll tasks, which are disposable and
	// never counted against caller-facing command metrics.
	poll bool

	once sync.Once
	sink func(value any, err error)
}

func newTask(cmd Command, frame []byte, timeout time.Duration, sink func(any, error)) *task {
	return &task{
		cmd:     cmd,
		frame:   frame,
		timeout: timeout,
		sink:    sink,
	}
}

// complete invokes the sink with the given outcome. Later calls are no-ops.
func (t *task) complete(value any, err error) {
	t.once.Do(func() {
		t.sink(value, err)
	})
}
