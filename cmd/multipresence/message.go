package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdMessage)
	cmdMessage.Flags().BoolVar(&messageClear, "clear", false, "Clear the custom message")
}

var messageClear bool

var cmdMessage = &cobra.Command{
	Use:   "message [text...]",
	Short: "Set or clear the custom presence message",
	Long: `Sets the free-form text shown as presence details instead of the CPU/RAM line.
Blacklisted words are redacted before anything is published.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))
		switch {
		case messageClear && text != "":
			return errors.New("--clear takes no message")
		case !messageClear && text == "":
			return errors.New("message text is required (or use --clear)")
		}
		if err := controller().SetMessage(cmd.Context(), text, rpcTimeout); err != nil {
			return err
		}
		if messageClear {
			fmt.Fprintln(cmd.OutOrStdout(), "Custom message cleared")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Custom message set")
		}
		return nil
	},
}
