package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-ccnet/ccnet"
)

var (
	listenStack  bool
	listenReturn bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Enable acceptance and stream status changes",
	Long: `Enable all bill types with escrow holding and print every status
change until interrupted.

By default escrowed bills stay in escrow (and are returned by the
validator when the escrow period lapses). With --stack every recognized
bill is sent to the cassette; with --return every bill goes back to the
customer.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().BoolVar(&listenStack, "stack", false, "stack every escrowed bill")
	listenCmd.Flags().BoolVar(&listenReturn, "return", false, "return every escrowed bill")
}

func runListen(cmd *cobra.Command, args []string) error {
	if listenStack && listenReturn {
		return fmt.Errorf("--stack and --return are mutually exclusive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	table, err := device.BillTable(ctx)
	if err != nil {
		return fmt.Errorf("bill table: %w", err)
	}

	escrowDecision := make(chan ccnet.Status, 1)
	device.AddStatusHandler(func(status ccnet.Status) {
		line := status.State.String()

		switch status.State {
		case ccnet.StateBillEscrow, ccnet.StateBillStacked, ccnet.StateBillReturned:
			bill := ccnet.BillType{}
			if int(status.BillType) < len(table) {
				bill = table[status.BillType]
			}
			line = fmt.Sprintf("%s: %d %s (type %d)", line, bill.Denomination, bill.CountryCode, status.BillType)
		}

		fmt.Printf("[%s] %s\n", status.Code, line)

		if status.State == ccnet.StateBillEscrow && (listenStack || listenReturn) {
			select {
			case escrowDecision <- status:
			default:
			}
		}
	})

	if err := device.EnableAll(ctx); err != nil && !isAckTimeout(err) {
		return fmt.Errorf("enable bill types: %w", err)
	}

	fmt.Println("listening, press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-escrowDecision:
			// Status handlers must not block, so the escrow decision is
			// acted on here.
			var err error
			if listenStack {
				err = device.Stack(ctx)
			} else {
				err = device.Return(ctx)
			}

			if err != nil && !isAckTimeout(err) {
				fmt.Fprintf(os.Stderr, "escrow decision failed: %v\n", err)
			}
		}
	}
}

// isAckTimeout reports whether the error is the budget expiry seen when
// the validator confirms a command with a bare ACK frame instead of data.
func isAckTimeout(err error) bool {
	return errors.Is(err, ccnet.ErrRequestTimeout)
}
