package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdStop)
	cmdStop.Flags().BoolVarP(&stopForce, "force", "f", false, "Kill the daemon if it ignores SIGTERM")
}

var stopForce bool

var cmdStop = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon (clears the presence)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := controller()
		st, err := ctrl.Status()
		if err != nil {
			return err
		}
		if !st.Running {
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
			return nil
		}
		if err := ctrl.StopDaemon(stopForce); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
		return nil
	},
}
