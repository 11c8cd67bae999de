package ccnet

import (
	"fmt"
)

// StatusCode is the raw 1–2 byte status reported in a Poll response,
// packed with the primary byte high and the qualifier byte (when present)
// low.
type StatusCode uint16

func statusCode(primary, qualifier byte) StatusCode {
	return StatusCode(uint16(primary)<<8 | uint16(qualifier))
}

// Primary returns the first status byte.
func (c StatusCode) Primary() byte { return byte(c >> 8) }

// Qualifier returns the second status byte, 0 when the status has none.
func (c StatusCode) Qualifier() byte { return byte(c) }

// String renders the code the way CCNet documentation writes it: two hex
// digits, or four when a qualifier byte is present.
func (c StatusCode) String() string {
	if c.Qualifier() == 0 {
		return fmt.Sprintf("%02x", c.Primary())
	}

	return fmt.Sprintf("%02x%02x", c.Primary(), c.Qualifier())
}

// DeviceState is the classified, semantic condition of the validator.
type DeviceState uint8

// Semantic device states derived from the raw status codes.
const (
	StateUnknown DeviceState = iota

	// Power-up and initialization.
	StatePowerUp
	StatePowerUpWithBillInValidator
	StatePowerUpWithBillInStacker
	StateInitialize

	// Normal operation.
	StateIdling
	StateAccepting
	StateStacking
	StateReturning
	StateUnitDisabled
	StateHolding
	StateDeviceBusy

	// Rejection reasons.
	StateRejecting
	StateRejectingDueToInsertion
	StateRejectingDueToMagnetic
	StateRejectingDueToRemainedBillInHead
	StateRejectingDueToMultiplying
	StateRejectingDueToConveying
	StateRejectingDueToIdentification
	StateRejectingDueToVerification
	StateRejectingDueToOptic
	StateRejectingDueToInhibit
	StateRejectingDueToCapacity
	StateRejectingDueToOperation
	StateRejectingDueToLength

	// Cassette and jam conditions.
	StateDropCassetteFull
	StateDropCassetteOutOfPosition
	StateValidatorJammed
	StateDropCassetteJammed
	StateCheated
	StatePause

	// Hardware failure reasons.
	StateFailure
	StateStackMotorFailure
	StateTransportMotorSpeedFailure
	StateTransportMotorFailure
	StateAligningMotorFailure
	StateInitialCassetteStatusFailure
	StateOpticCanalFailure
	StateMagneticCanalFailure
	StateCapacitanceCanalFailure

	// Escrow outcomes. These carry the bill type index.
	StateBillEscrow
	StateBillStacked
	StateBillReturned
)

// String returns the state name.
func (s DeviceState) String() string {
	switch s {
	case StatePowerUp:
		return "power-up"
	case StatePowerUpWithBillInValidator:
		return "power-up-with-bill-in-validator"
	case StatePowerUpWithBillInStacker:
		return "power-up-with-bill-in-stacker"
	case StateInitialize:
		return "initialize"
	case StateIdling:
		return "idling"
	case StateAccepting:
		return "accepting"
	case StateStacking:
		return "stacking"
	case StateReturning:
		return "returning"
	case StateUnitDisabled:
		return "unit-disabled"
	case StateHolding:
		return "holding"
	case StateDeviceBusy:
		return "device-busy"
	case StateRejecting:
		return "rejecting"
	case StateRejectingDueToInsertion:
		return "rejecting-due-to-insertion"
	case StateRejectingDueToMagnetic:
		return "rejecting-due-to-magnetic"
	case StateRejectingDueToRemainedBillInHead:
		return "rejecting-due-to-remained-bill-in-head"
	case StateRejectingDueToMultiplying:
		return "rejecting-due-to-multiplying"
	case StateRejectingDueToConveying:
		return "rejecting-due-to-conveying"
	case StateRejectingDueToIdentification:
		return "rejecting-due-to-identification"
	case StateRejectingDueToVerification:
		return "rejecting-due-to-verification"
	case StateRejectingDueToOptic:
		return "rejecting-due-to-optic"
	case StateRejectingDueToInhibit:
		return "rejecting-due-to-inhibit"
	case StateRejectingDueToCapacity:
		return "rejecting-due-to-capacity"
	case StateRejectingDueToOperation:
		return "rejecting-due-to-operation"
	case StateRejectingDueToLength:
		return "rejecting-due-to-length"
	case StateDropCassetteFull:
		return "drop-cassette-full"
	case StateDropCassetteOutOfPosition:
		return "drop-cassette-out-of-position"
	case StateValidatorJammed:
		return "validator-jammed"
	case StateDropCassetteJammed:
		return "drop-cassette-jammed"
	case StateCheated:
		return "cheated"
	case StatePause:
		return "pause"
	case StateFailure:
		return "failure"
	case StateStackMotorFailure:
		return "stack-motor-failure"
	case StateTransportMotorSpeedFailure:
		return "transport-motor-speed-failure"
	case StateTransportMotorFailure:
		return "transport-motor-failure"
	case StateAligningMotorFailure:
		return "aligning-motor-failure"
	case StateInitialCassetteStatusFailure:
		return "initial-cassette-status-failure"
	case StateOpticCanalFailure:
		return "optic-canal-failure"
	case StateMagneticCanalFailure:
		return "magnetic-canal-failure"
	case StateCapacitanceCanalFailure:
		return "capacitance-canal-failure"
	case StateBillEscrow:
		return "bill-escrow"
	case StateBillStacked:
		return "bill-stacked"
	case StateBillReturned:
		return "bill-returned"
	default:
		return "unknown"
	}
}

// Status is a classified Poll result.
type Status struct {
	// Code is the raw status code as received.
	Code StatusCode

	// State is the semantic classification of Code.
	State DeviceState

	// BillType is the bill-table index reported with the escrow states
	// (bill-escrow, bill-stacked, bill-returned); 0 otherwise.
	BillType byte
}

// statusTable maps raw status codes to semantic states. Codes with a
// qualifier family (rejecting, failure) are keyed on both bytes;
// single-byte codes are keyed with a zero qualifier.
var statusTable = map[StatusCode]DeviceState{
	statusCode(0x10, 0): StatePowerUp,
	statusCode(0x11, 0): StatePowerUpWithBillInValidator,
	statusCode(0x12, 0): StatePowerUpWithBillInStacker,
	statusCode(0x13, 0): StateInitialize,
	statusCode(0x14, 0): StateIdling,
	statusCode(0x15, 0): StateAccepting,
	statusCode(0x17, 0): StateStacking,
	statusCode(0x18, 0): StateReturning,
	statusCode(0x19, 0): StateUnitDisabled,
	statusCode(0x1A, 0): StateHolding,

	statusCode(0x1C, 0x00): StateRejecting,
	statusCode(0x1C, 0x60): StateRejectingDueToInsertion,
	statusCode(0x1C, 0x61): StateRejectingDueToMagnetic,
	statusCode(0x1C, 0x62): StateRejectingDueToRemainedBillInHead,
	statusCode(0x1C, 0x63): StateRejectingDueToMultiplying,
	statusCode(0x1C, 0x64): StateRejectingDueToConveying,
	statusCode(0x1C, 0x65): StateRejectingDueToIdentification,
	statusCode(0x1C, 0x66): StateRejectingDueToVerification,
	statusCode(0x1C, 0x67): StateRejectingDueToOptic,
	statusCode(0x1C, 0x68): StateRejectingDueToInhibit,
	statusCode(0x1C, 0x69): StateRejectingDueToCapacity,
	statusCode(0x1C, 0x6A): StateRejectingDueToOperation,
	statusCode(0x1C, 0x6C): StateRejectingDueToLength,

	statusCode(0x41, 0): StateDropCassetteFull,
	statusCode(0x42, 0): StateDropCassetteOutOfPosition,
	statusCode(0x43, 0): StateValidatorJammed,
	statusCode(0x44, 0): StateDropCassetteJammed,
	statusCode(0x45, 0): StateCheated,
	statusCode(0x46, 0): StatePause,

	statusCode(0x47, 0x00): StateFailure,
	statusCode(0x47, 0x50): StateStackMotorFailure,
	statusCode(0x47, 0x51): StateTransportMotorSpeedFailure,
	statusCode(0x47, 0x52): StateTransportMotorFailure,
	statusCode(0x47, 0x53): StateAligningMotorFailure,
	statusCode(0x47, 0x54): StateInitialCassetteStatusFailure,
	statusCode(0x47, 0x55): StateOpticCanalFailure,
	statusCode(0x47, 0x56): StateMagneticCanalFailure,
	statusCode(0x47, 0x5F): StateCapacitanceCanalFailure,
}

// ClassifyStatus maps a Poll response payload to its semantic state.
//
// The escrow statuses (0x80–0x82) and device-busy (0x1B) carry a data
// byte rather than a classification qualifier; for those the data byte is
// preserved in the returned Status but not consulted for the lookup.
// A code absent from the table fails with ErrUnrecognizedStatus.
func ClassifyStatus(payload []byte) (Status, error) {
	if len(payload) == 0 {
		return Status{}, fmt.Errorf("%w: empty status payload", ErrResponseLength)
	}

	primary := payload[0]

	var qualifier byte
	if len(payload) > 1 {
		qualifier = payload[1]
	}

	code := statusCode(primary, qualifier)

	switch primary {
	case 0x1B:
		// The qualifier is the expected busy duration, not a sub-state.
		return Status{Code: code, State: StateDeviceBusy}, nil
	case 0x80:
		return Status{Code: code, State: StateBillEscrow, BillType: qualifier}, nil
	case 0x81:
		return Status{Code: code, State: StateBillStacked, BillType: qualifier}, nil
	case 0x82:
		return Status{Code: code, State: StateBillReturned, BillType: qualifier}, nil
	}

	if state, ok := statusTable[code]; ok {
		return Status{Code: code, State: state}, nil
	}

	return Status{Code: code}, fmt.Errorf("%w: %s", ErrUnrecognizedStatus, code)
}
