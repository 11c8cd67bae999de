package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-ccnet/ccnet"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := ccnet.ListPorts()
		if err != nil {
			return err
		}

		if len(ports) == 0 {
			fmt.Println("no serial ports found")

			return nil
		}

		for _, port := range ports {
			fmt.Println(port)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
