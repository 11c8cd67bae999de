package ccnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatusSingleByte(t *testing.T) {
	tests := []struct {
		payload []byte
		want    DeviceState
	}{
		{[]byte{0x10}, StatePowerUp},
		{[]byte{0x13}, StateInitialize},
		{[]byte{0x14}, StateIdling},
		{[]byte{0x15}, StateAccepting},
		{[]byte{0x17}, StateStacking},
		{[]byte{0x18}, StateReturning},
		{[]byte{0x19}, StateUnitDisabled},
		{[]byte{0x1A}, StateHolding},
		{[]byte{0x41}, StateDropCassetteFull},
		{[]byte{0x42}, StateDropCassetteOutOfPosition},
		{[]byte{0x43}, StateValidatorJammed},
		{[]byte{0x44}, StateDropCassetteJammed},
		{[]byte{0x45}, StateCheated},
		{[]byte{0x46}, StatePause},
	}

	for _, tt := range tests {
		status, err := ClassifyStatus(tt.payload)
		require.NoError(t, err, "payload %X", tt.payload)
		assert.Equal(t, tt.want, status.State, "payload %X", tt.payload)
	}
}

func TestClassifyStatusRejecting(t *testing.T) {
	status, err := ClassifyStatus([]byte{0x1C})
	require.NoError(t, err)
	assert.Equal(t, StateRejecting, status.State)

	status, err = ClassifyStatus([]byte{0x1C, 0x60})
	require.NoError(t, err)
	assert.Equal(t, StateRejectingDueToInsertion, status.State)

	status, err = ClassifyStatus([]byte{0x1C, 0x64})
	require.NoError(t, err)
	assert.Equal(t, StateRejectingDueToConveying, status.State)

	status, err = ClassifyStatus([]byte{0x1C, 0x68})
	require.NoError(t, err)
	assert.Equal(t, StateRejectingDueToInhibit, status.State)
}

func TestClassifyStatusFailure(t *testing.T) {
	status, err := ClassifyStatus([]byte{0x47, 0x50})
	require.NoError(t, err)
	assert.Equal(t, StateStackMotorFailure, status.State)

	status, err = ClassifyStatus([]byte{0x47, 0x5F})
	require.NoError(t, err)
	assert.Equal(t, StateCapacitanceCanalFailure, status.State)
}

// The escrow family and device-busy carry a data byte, not a sub-state:
// any value must classify.
func TestClassifyStatusDataByte(t *testing.T) {
	status, err := ClassifyStatus([]byte{0x80, 0x05})
	require.NoError(t, err)
	assert.Equal(t, StateBillEscrow, status.State)
	assert.Equal(t, uint8(5), status.BillType)

	status, err = ClassifyStatus([]byte{0x81, 0x17})
	require.NoError(t, err)
	assert.Equal(t, StateBillStacked, status.State)
	assert.Equal(t, uint8(0x17), status.BillType)

	status, err = ClassifyStatus([]byte{0x82, 0x00})
	require.NoError(t, err)
	assert.Equal(t, StateBillReturned, status.State)

	status, err = ClassifyStatus([]byte{0x1B, 0x64})
	require.NoError(t, err)
	assert.Equal(t, StateDeviceBusy, status.State)
}

func TestClassifyStatusUnrecognized(t *testing.T) {
	_, err := ClassifyStatus([]byte{0xEE})
	require.ErrorIs(t, err, ErrUnrecognizedStatus)

	_, err = ClassifyStatus([]byte{0x1C, 0x6B})
	require.ErrorIs(t, err, ErrUnrecognizedStatus)

	_, err = ClassifyStatus(nil)
	require.ErrorIs(t, err, ErrResponseLength)
}

func TestStatusCodeString(t *testing.T) {
	status, err := ClassifyStatus([]byte{0x14})
	require.NoError(t, err)
	assert.Equal(t, "14", status.Code.String())

	status, err = ClassifyStatus([]byte{0x1C, 0x60})
	require.NoError(t, err)
	assert.Equal(t, "1c60", status.Code.String())
}
