package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print validator identity, bill table and acceptance state",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	info, err := device.Identify(ctx)
	if err != nil {
		return fmt.Errorf("identification: %w", err)
	}

	fmt.Printf("Part number:   %s\n", info.PartNumber)
	fmt.Printf("Serial number: %s\n", info.SerialNumber)
	fmt.Printf("Asset number:  %X\n", info.AssetNumber)

	crc, err := device.FirmwareCRC32(ctx)
	if err != nil {
		return fmt.Errorf("firmware crc: %w", err)
	}
	fmt.Printf("Firmware CRC:  0x%08X\n", crc)

	table, err := device.BillTable(ctx)
	if err != nil {
		return fmt.Errorf("bill table: %w", err)
	}

	status, err := device.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("acceptance status: %w", err)
	}

	fmt.Println("\nBill table:")
	for i, bill := range table {
		if bill.IsZero() {
			continue
		}

		flags := ""
		if status.Enabled.IsSet(uint8(i)) {
			flags += " enabled"
		}
		if status.Security.IsSet(uint8(i)) {
			flags += " high-security"
		}

		fmt.Printf("  %2d: %6d %s%s\n", i, bill.Denomination, bill.CountryCode, flags)
	}

	return nil
}
