package ccnet

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// maskSize is the size of a bill-type mask on the wire.
const maskSize = 3

// billTypeCount is the number of bill types a validator can report.
const billTypeCount = 24

// identificationSize is the size of the Identification response payload.
const identificationSize = 34

// billRecordSize is the size of one bill-table record.
const billRecordSize = 5

// BillMask selects bill types 0–23, one bit per type.
//
// The wire order is most-significant byte first: byte 0 covers types
// 16–23, byte 2 covers types 0–7.
type BillMask [maskSize]byte

// AllBills enables every bill type.
var AllBills = BillMask{0xFF, 0xFF, 0xFF}

// IsSet reports whether the given bill type is selected.
func (m BillMask) IsSet(billType uint8) bool {
	if billType >= billTypeCount {
		return false
	}

	return m[maskSize-1-int(billType)/8]&(1<<(billType%8)) != 0
}

// Set selects the given bill type.
func (m *BillMask) Set(billType uint8) {
	if billType >= billTypeCount {
		return
	}

	m[maskSize-1-int(billType)/8] |= 1 << (billType % 8)
}

// Reset is the 0x30 command. The validator confirms it with a bare ACK
// frame and reboots to its power-up state.
type Reset struct{}

func (Reset) Code() byte   { return CmdReset }
func (Reset) Name() string { return "Reset" }

func (c Reset) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

func (Reset) ParseResponse(_ []byte) (any, error) {
	return nil, nil
}

// Poll is the 0x33 command. The response is the validator's current status
// code, classified into a [Status].
type Poll struct{}

func (Poll) Code() byte   { return CmdPoll }
func (Poll) Name() string { return "Poll" }

func (c Poll) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

func (Poll) ParseResponse(payload []byte) (any, error) {
	status, err := ClassifyStatus(payload)
	if err != nil {
		return nil, err
	}

	return status, nil
}

// AcceptanceStatus is the result of the GetStatus command: which bill
// types the validator currently accepts, and which have high security
// enabled.
type AcceptanceStatus struct {
	Enabled  BillMask
	Security BillMask
}

// GetStatus is the 0x31 command.
type GetStatus struct{}

func (GetStatus) Code() byte   { return CmdGetStatus }
func (GetStatus) Name() string { return "GetStatus" }

func (c GetStatus) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

func (c GetStatus) ParseResponse(payload []byte) (any, error) {
	if len(payload) != 2*maskSize {
		return nil, fmt.Errorf("%w: %s got %d bytes, want %d", ErrResponseLength, c.Name(), len(payload), 2*maskSize)
	}

	status := &AcceptanceStatus{}
	copy(status.Enabled[:], payload[:maskSize])
	copy(status.Security[:], payload[maskSize:])

	return status, nil
}

// SetSecurity is the 0x32 command. Its parameters are a 3-byte mask of
// bill types to validate with high security.
type SetSecurity struct{}

func (SetSecurity) Code() byte   { return CmdSetSecurity }
func (SetSecurity) Name() string { return "SetSecurity" }

func (c SetSecurity) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, maskSize)
}

func (SetSecurity) ParseResponse(_ []byte) (any, error) {
	return nil, nil
}

// EnableBillTypes is the 0x34 command. Its parameters are a 3-byte mask of
// bill types to accept followed by a 3-byte mask of bill types to hold in
// escrow before stacking.
type EnableBillTypes struct{}

func (EnableBillTypes) Code() byte   { return CmdEnableBillTypes }
func (EnableBillTypes) Name() string { return "EnableBillTypes" }

func (c EnableBillTypes) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 2*maskSize)
}

func (EnableBillTypes) ParseResponse(_ []byte) (any, error) {
	return nil, nil
}

// Stack is the 0x35 command: move the escrowed bill to the drop cassette.
type Stack struct{}

func (Stack) Code() byte   { return CmdStack }
func (Stack) Name() string { return "Stack" }

func (c Stack) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

func (Stack) ParseResponse(_ []byte) (any, error) {
	return nil, nil
}

// Return is the 0x36 command: return the escrowed bill to the customer.
type Return struct{}

func (Return) Code() byte   { return CmdReturn }
func (Return) Name() string { return "Return" }

func (c Return) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

func (Return) ParseResponse(_ []byte) (any, error) {
	return nil, nil
}

// Hold is the 0x38 command: keep the escrowed bill in place for another
// escrow period while the controller decides.
type Hold struct{}

func (Hold) Code() byte   { return CmdHold }
func (Hold) Name() string { return "Hold" }

func (c Hold) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

func (Hold) ParseResponse(_ []byte) (any, error) {
	return nil, nil
}

// DeviceInfo describes the validator as reported by the Identification
// command.
type DeviceInfo struct {
	// PartNumber is the 15-character model identifier.
	PartNumber string
	// SerialNumber is the 12-character factory serial number.
	SerialNumber string
	// AssetNumber is the 7-byte unique asset tag.
	AssetNumber [7]byte
}

func (info *DeviceInfo) String() string {
	return fmt.Sprintf("%s sn=%s asset=%X", info.PartNumber, info.SerialNumber, info.AssetNumber)
}

// Identification is the 0x37 command.
type Identification struct{}

func (Identification) Code() byte   { return CmdIdentification }
func (Identification) Name() string { return "Identification" }

func (c Identification) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

func (c Identification) ParseResponse(payload []byte) (any, error) {
	if len(payload) != identificationSize {
		return nil, fmt.Errorf("%w: %s got %d bytes, want %d", ErrResponseLength, c.Name(), len(payload), identificationSize)
	}

	info := &DeviceInfo{
		PartNumber:   strings.TrimRight(string(payload[0:15]), " "),
		SerialNumber: strings.TrimRight(string(payload[15:27]), " "),
	}
	copy(info.AssetNumber[:], payload[27:34])

	return info, nil
}

// BillType is one entry of the validator's bill table. The bill type index
// reported in escrow statuses is the entry's position in the table.
type BillType struct {
	// Denomination is the bill's face value in the currency's base unit.
	Denomination uint64
	// CountryCode is the 3-letter issuing country code.
	CountryCode string
}

// IsZero reports whether the entry is an unused table slot.
func (b BillType) IsZero() bool {
	return b.Denomination == 0 && b.CountryCode == ""
}

// GetBillTable is the 0x41 command. The response is 24 records of 5 bytes
// each: the first denomination digit, a 3-letter country code, and a
// power-of-ten exponent.
type GetBillTable struct{}

func (GetBillTable) Code() byte   { return CmdGetBillTable }
func (GetBillTable) Name() string { return "GetBillTable" }

func (c GetBillTable) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

func (c GetBillTable) ParseResponse(payload []byte) (any, error) {
	if len(payload) != billTypeCount*billRecordSize {
		return nil, fmt.Errorf("%w: %s got %d bytes, want %d",
			ErrResponseLength, c.Name(), len(payload), billTypeCount*billRecordSize)
	}

	table := make([]BillType, billTypeCount)
	for i := range table {
		record := payload[i*billRecordSize : (i+1)*billRecordSize]
		if record[0] == 0 {
			continue // unused slot
		}

		table[i] = BillType{
			Denomination: uint64(record[0]) * pow10(record[4]&0x7F),
			CountryCode:  strings.TrimRight(string(record[1:4]), "\x00 "),
		}
	}

	return table, nil
}

func pow10(exp byte) uint64 {
	v := uint64(1)
	for i := byte(0); i < exp; i++ {
		v *= 10
	}

	return v
}

// GetCRC32OfTheCode is the 0x51 command. The response is the CRC32 of the
// validator's firmware, little-endian.
type GetCRC32OfTheCode struct{}

func (GetCRC32OfTheCode) Code() byte   { return CmdGetCRC32OfTheCode }
func (GetCRC32OfTheCode) Name() string { return "GetCRC32OfTheCode" }

func (c GetCRC32OfTheCode) BuildRequest(params []byte) ([]byte, error) {
	return buildRequest(c, params, 0)
}

func (c GetCRC32OfTheCode) ParseResponse(payload []byte) (any, error) {
	if len(payload) != 4 {
		return nil, fmt.Errorf("%w: %s got %d bytes, want 4", ErrResponseLength, c.Name(), len(payload))
	}

	return binary.LittleEndian.Uint32(payload), nil
}
