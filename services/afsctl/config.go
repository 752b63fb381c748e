package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/config"
)

const redacted = "********"

func configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "config outputs the computed configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf, err := config.Fetch()
			if err != nil {
				return err
			}

			out := *cnf
			if out.Terminal.SecureKey != "" {
				out.Terminal.SecureKey = redacted
			}
			if out.Gateway.SecretKey != "" {
				out.Gateway.SecretKey = redacted
			}

			data, err := json.MarshalIndent(out, "", "    ")
			if err != nil {
				return fmt.Errorf("error printing config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
