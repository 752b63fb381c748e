package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/config"
)

// cli is the afsctl root command.
type cli struct {
	cmd *cobra.Command
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

func preRun(configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(*configFile); err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		_, err := config.Fetch()
		return err
	}
}

func newCLI() *cli {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "afsctl",
		Short:         "Operate an AFS payment terminal through the transaction gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./afs.json", "Configuration file")
	rootCmd.PersistentPreRunE = preRun(&configFile)

	rootCmd.AddCommand(payCommand())
	rootCmd.AddCommand(configCommand())

	return &cli{cmd: rootCmd}
}

func (c cli) execute() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	newCLI().execute()
}
