// Package cmd wires the engine's cobra root command the way a full node's
// server/cmd.Execute wires one: a background context carrying cancellation
// on SIGINT/SIGTERM, and the shared logging persistent flags, generalized
// from a full node's flag set down to this program's CLI surface
// (archive/regen/regen-step/check).
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cosmos-archival/reindexer/internal/xlog"
)

// Execute runs rootCmd with a cancellable background context and env/flag
// precedence bound through envPrefix, returning the command's error (the
// caller maps this to a non-zero exit code).
func Execute(rootCmd *cobra.Command, envPrefix string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	xlog.AddFlags(rootCmd.PersistentFlags())

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	previousPreRun := rootCmd.PersistentPreRunE
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		bindEnvOverrides(cmd, v)
		if previousPreRun != nil {
			return previousPreRun(cmd, args)
		}
		return nil
	}

	return rootCmd.ExecuteContext(ctx)
}

// bindEnvOverrides applies any flag value viper resolved from the
// envPrefix-prefixed environment (e.g. REINDEXER_DATABASE_URL) back onto
// cmd's flags, so flags, env, and defaults follow the usual precedence
// without every command needing its own viper wiring.
func bindEnvOverrides(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed && v.IsSet(f.Name) {
			_ = cmd.Flags().Set(f.Name, v.GetString(f.Name))
		}
	})
}
