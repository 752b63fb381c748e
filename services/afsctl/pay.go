package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/config"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/coordinator"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/gateway"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/pos"
)

func payCommand() *cobra.Command {
	var (
		amount   string
		orderRef string
		methodID string
	)

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Take one card payment on the terminal. Ctrl-C cancels it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf, err := config.Fetch()
			if err != nil {
				return err
			}

			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			if methodID == "" {
				methodID = cnf.Gateway.MethodID
			}

			client := gateway.NewRPCClient(cnf.Gateway.URL, cnf.Gateway.SecretKey,
				time.Duration(cnf.Gateway.TimeoutSec)*time.Second, "afsctl")
			// an interrupted CLI payment always tells the terminal to stop
			coord := coordinator.New(client, pos.Notifier(), coordinator.Options{
				MethodID:              methodID,
				NotifyGatewayOnCancel: true,
			})

			return pay(cmd, coord, pos.NewLine(uuid.New().String(), orderRef, methodID, value))
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Amount in OMR")
	cmd.Flags().StringVar(&orderRef, "order", "", "Order reference")
	cmd.Flags().StringVar(&methodID, "method", "", "Payment method id (defaults to the configured one)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func pay(cmd *cobra.Command, coord *coordinator.Coordinator, line *pos.Line) error {
	interrupted, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		select {
		case <-interrupted.Done():
			logrus.Warn("Interrupted, cancelling payment")
			coord.Cancel(context.Background(), line, line.ID())
		case <-done:
		}
	}()

	ok, err := coord.Start(cmd.Context(), line.OrderRef(), line, line.ID())
	close(done)
	coord.Wait()

	view := line.View()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "payment %s: %s\n", view.ID, view.Status)
	if view.AFSTransactionID != "" {
		fmt.Fprintf(out, "transaction: %s\n", view.AFSTransactionID)
	}
	for _, n := range view.Notices {
		fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Message)
	}

	if !ok {
		return fmt.Errorf("payment not approved: %w", err)
	}
	return nil
}
