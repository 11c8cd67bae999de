package ccnet

import (
	"context"
	"fmt"
)

// This file holds the typed convenience operations. Each one is a thin
// wrapper over Execute with the device's default timeout; use Execute
// directly for custom timeouts or vendor-specific commands.

// Reset commands the peripheral to perform a soft reset.
func (d *Device) Reset(ctx context.Context) error {
	_, err := d.Execute(ctx, Reset{}, nil, d.cfg.defaultTimeout)

	return err
}

// Identify reads the peripheral's part number, serial number and asset
// number.
func (d *Device) Identify(ctx context.Context) (*DeviceInfo, error) {
	value, err := d.Execute(ctx, Identification{}, nil, d.cfg.defaultTimeout)
	if err != nil {
		return nil, err
	}

	info, ok := value.(*DeviceInfo)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected identification result %T", ErrResponseLength, value)
	}

	return info, nil
}

// BillTable reads the 24-slot denomination table. Unpopulated slots are
// returned as zero-value BillType entries so that indexes line up with
// the bill type reported in escrow and stacking events.
func (d *Device) BillTable(ctx context.Context) ([]BillType, error) {
	value, err := d.Execute(ctx, GetBillTable{}, nil, d.cfg.defaultTimeout)
	if err != nil {
		return nil, err
	}

	table, ok := value.([]BillType)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected bill table result %T", ErrResponseLength, value)
	}

	return table, nil
}

// FirmwareCRC32 reads the CRC-32 of the peripheral's firmware image.
func (d *Device) FirmwareCRC32(ctx context.Context) (uint32, error) {
	value, err := d.Execute(ctx, GetCRC32OfTheCode{}, nil, d.cfg.defaultTimeout)
	if err != nil {
		return 0, err
	}

	crc, ok := value.(uint32)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected crc result %T", ErrResponseLength, value)
	}

	return crc, nil
}

// GetStatus reads which bill types are currently enabled and which have
// high security mode set.
func (d *Device) GetStatus(ctx context.Context) (*AcceptanceStatus, error) {
	value, err := d.Execute(ctx, GetStatus{}, nil, d.cfg.defaultTimeout)
	if err != nil {
		return nil, err
	}

	status, ok := value.(*AcceptanceStatus)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected status result %T", ErrResponseLength, value)
	}

	return status, nil
}

// SetSecurity sets high security mode for the bill types named in the
// mask.
func (d *Device) SetSecurity(ctx context.Context, security BillMask) error {
	_, err := d.Execute(ctx, SetSecurity{}, security[:], d.cfg.defaultTimeout)

	return err
}

// EnableBillTypes enables acceptance of the bill types in enable and
// escrow holding for the bill types in escrow.
func (d *Device) EnableBillTypes(ctx context.Context, enable, escrow BillMask) error {
	params := make([]byte, 0, 2*maskSize)
	params = append(params, enable[:]...)
	params = append(params, escrow[:]...)

	_, err := d.Execute(ctx, EnableBillTypes{}, params, d.cfg.defaultTimeout)

	return err
}

// EnableAll enables acceptance of every bill type with escrow holding.
func (d *Device) EnableAll(ctx context.Context) error {
	return d.EnableBillTypes(ctx, AllBills, AllBills)
}

// Disable disables acceptance of all bill types. The peripheral keeps
// answering polls in the disabled state.
func (d *Device) Disable(ctx context.Context) error {
	return d.EnableBillTypes(ctx, BillMask{}, BillMask{})
}

// Hold extends the escrow holding period by roughly ten seconds. It must
// be re-issued while a bill is held in escrow to keep it there.
func (d *Device) Hold(ctx context.Context) error {
	_, err := d.Execute(ctx, Hold{}, nil, d.cfg.defaultTimeout)

	return err
}

// Stack commands the peripheral to move the escrowed bill into the
// cassette.
func (d *Device) Stack(ctx context.Context) error {
	_, err := d.Execute(ctx, Stack{}, nil, d.cfg.defaultTimeout)

	return err
}

// Return commands the peripheral to return the escrowed bill to the
// customer.
func (d *Device) Return(ctx context.Context) error {
	_, err := d.Execute(ctx, Return{}, nil, d.cfg.defaultTimeout)

	return err
}
