package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdReconnect)
}

var cmdReconnect = &cobra.Command{
	Use:   "reconnect",
	Short: "Re-establish the Discord connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := controller().Reconnect(cmd.Context(), rpcTimeout)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
		return nil
	},
}
