package ccnet

import "sync/atomic"

// opState tracks the device's open/close lifecycle.
type opState uint32

const (
	closedState opState = iota
	closingState
	openingState
	openedState
)

func (s opState) String() string {
	switch s {
	case closedState:
		return "closed"
	case closingState:
		return "closing"
	case openingState:
		return "opening"
	case openedState:
		return "opened"
	default:
		return "unknown"
	}
}

// atomicOpState holds an opState with atomic transitions, so lifecycle
// checks never race with Open/Close running on other goroutines.
type atomicOpState struct {
	state atomic.Uint32
}

func (st *atomicOpState) Get() opState {
	return opState(st.state.Load())
}

func (st *atomicOpState) Set(state opState) {
	st.state.Store(uint32(state))
}

func (st *atomicOpState) String() string {
	return st.Get().String()
}

func (st *atomicOpState) IsClosed() bool {
	return st.Get() == closedState
}

func (st *atomicOpState) IsOpened() bool {
	return st.Get() == openedState
}

// ToOpening transitions closed → opening.
func (st *atomicOpState) ToOpening() bool {
	return st.state.CompareAndSwap(uint32(closedState), uint32(openingState))
}

// ToOpened transitions opening → opened.
func (st *atomicOpState) ToOpened() bool {
	return st.state.CompareAndSwap(uint32(openingState), uint32(openedState))
}

// ToClosing transitions opened → closing, or opening → closing when an
// Open sequence aborts partway.
func (st *atomicOpState) ToClosing() bool {
	return st.state.CompareAndSwap(uint32(openedState), uint32(closingState)) ||
		st.state.CompareAndSwap(uint32(openingState), uint32(closingState))
}

// ToClosed transitions closing → closed.
func (st *atomicOpState) ToClosed() bool {
	return st.state.CompareAndSwap(uint32(closingState), uint32(closedState))
}
