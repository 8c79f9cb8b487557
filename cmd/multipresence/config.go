package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"multipresence/internal/app"
	"multipresence/internal/config"
)

func init() {
	rootCmd.AddCommand(cmdConfig)
	cmdConfig.AddCommand(cmdConfigPath, cmdConfigShow, cmdConfigReset, cmdConfigAddWord, cmdConfigRemoveWord, cmdConfigSet, cmdConfigReload)
}

var cmdConfig = &cobra.Command{
	Use:   "config",
	Short: "Inspect or edit the configuration file",
}

var cmdConfigPath = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := controller().ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var cmdConfigShow = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := controller().ConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.LoadFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; showing defaults\n", err)
		}
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(config.WithEnv(cfg), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

var cmdConfigReset = &cobra.Command{
	Use:   "reset",
	Short: "Overwrite the config file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := controller().ResetConfig(cmd.Context())
		if err != nil {
			return err
		}
		reportConfigChange(cmd.OutOrStdout(), "Config reset", res)
		return nil
	},
}

var cmdConfigAddWord = &cobra.Command{
	Use:   "add-word WORD",
	Short: "Add a word to the redaction blacklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := controller().AddWord(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		reportConfigChange(cmd.OutOrStdout(), fmt.Sprintf("Blacklisted %q", args[0]), res)
		return nil
	},
}

var cmdConfigRemoveWord = &cobra.Command{
	Use:   "remove-word WORD",
	Short: "Remove a word from the redaction blacklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := controller().RemoveWord(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		reportConfigChange(cmd.OutOrStdout(), fmt.Sprintf("Removed %q", args[0]), res)
		return nil
	},
}

var cmdConfigSet = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting",
	Long:  "Change one setting in the config file. Known keys: " + strings.Join(config.SettableKeys(), ", ") + ".",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := controller().SetConfig(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		reportConfigChange(cmd.OutOrStdout(), fmt.Sprintf("Set %s=%s", args[0], args[1]), res)
		return nil
	},
}

var cmdConfigReload = &cobra.Command{
	Use:   "reload",
	Short: "Ask the running daemon to re-read the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := controller().ReloadConfig(cmd.Context())
		if errors.Is(err, app.ErrDaemonNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running; changes apply on next start")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon reloaded the configuration")
		return nil
	},
}

func reportConfigChange(out io.Writer, what string, res app.ConfigResult) {
	fmt.Fprintf(out, "%s in %s\n", what, res.Path)
	if res.Reloaded {
		fmt.Fprintln(out, "Daemon reloaded the configuration")
	}
}
