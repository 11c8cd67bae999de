package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-ccnet/ccnet"
	"github.com/arloliu/go-ccnet/logger"
)

var (
	portName string
	baudRate int
	address  uint8
	timeout  time.Duration
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "ccnetctl",
	Short: "CCNet bill validator control tool",
	Long: `ccnetctl talks to CCNet bill validators over a serial line.

It connects to the peripheral, runs the identification sequence and then
executes the requested command. Use "ccnetctl ports" to find the serial
device first.

Examples:
  ccnetctl ports
  ccnetctl info --port /dev/ttyUSB0
  ccnetctl listen --port /dev/ttyUSB0 --stack`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", ccnet.DefaultBaudRate, "baud rate")
	rootCmd.PersistentFlags().Uint8Var(&address, "address", ccnet.BillValidatorAddr, "peripheral address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", ccnet.DefaultCommandTimeout, "per-command response timeout")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// openDevice connects to the validator on the configured port and runs the
// identification sequence.
func openDevice(ctx context.Context) (*ccnet.Device, error) {
	if portName == "" {
		return nil, fmt.Errorf("no serial port given, use --port (see \"ccnetctl ports\")")
	}

	level := logger.InfoLevel
	if debug {
		level = logger.DebugLevel
	}

	cfg, err := ccnet.NewConfig(portName,
		ccnet.WithBaudRate(baudRate),
		ccnet.WithAddress(address),
		ccnet.WithDefaultTimeout(timeout),
		ccnet.WithLogger(logger.NewSlog(level, false)),
	)
	if err != nil {
		return nil, err
	}

	device, err := ccnet.NewDevice(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := device.Open(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", portName, err)
	}

	return device, nil
}
