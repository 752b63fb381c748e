package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/afs"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/config"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/coordinator"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/gateway"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/patterns"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/pos"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/simulator"
)

const soapPath = "/EcrComInterface.svc"

// startStack runs a simulated terminal behind a real gateway-service router.
func startStack(t *testing.T, approveAfter int) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	simRouter := gin.New()
	simulator.NewTerminal(simulator.Options{ApproveAfter: approveAfter, SecureKey: "key", Seed: 7}).Routes(simRouter, soapPath)
	sim := httptest.NewServer(simRouter)
	t.Cleanup(sim.Close)

	backend := gateway.NewBackend(patterns.NewBulkhead(1, patterns.BulkheadWait, "Terminal", "afsctl-test"), nil)
	require.NoError(t, backend.Configure("1", afs.Credentials{
		ServiceURL: sim.URL + soapPath,
		TID:        "10001234",
		MID:        "200012345678",
		SecureKey:  "key",
	}, time.Second))

	gwRouter := gin.New()
	gateway.NewHandler(backend).Routes(gwRouter, "s3cr3t", config.RateLimitConfig{})
	gw := httptest.NewServer(gwRouter)
	t.Cleanup(gw.Close)
	return gw.URL
}

func runPay(t *testing.T, gatewayURL string, maxPolls int, amount string) (*pos.Line, string, error) {
	t.Helper()
	client := gateway.NewRPCClient(gatewayURL, "s3cr3t", time.Second, "afsctl-test")
	coord := coordinator.New(client, pos.Notifier(), coordinator.Options{
		MethodID:     "1",
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
	})

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())

	line := pos.NewLine("pay-1", "Order 0001", "1", decimal.RequireFromString(amount))
	err := pay(cmd, coord, line)
	return line, out.String(), err
}

func TestPay_ApprovedThroughSimulator(t *testing.T) {
	url := startStack(t, 2)

	line, out, err := runPay(t, url, 5, "1.250")
	require.NoError(t, err)
	assert.Equal(t, models.LineStatusDone, line.Status())
	assert.Equal(t, "pay-1", line.TransactionID())
	assert.Contains(t, out, "payment pay-1: done")
}

func TestPay_DeclinedThroughSimulator(t *testing.T) {
	url := startStack(t, 0)

	line, out, err := runPay(t, url, 5, "2.999")
	require.Error(t, err)
	assert.Equal(t, models.LineStatusForceDone, line.Status())
	assert.Contains(t, out, "payment pay-1: force_done")
}

func TestPay_TimesOutWhileWaitingForCard(t *testing.T) {
	url := startStack(t, 100)

	line, out, err := runPay(t, url, 2, "3")
	assert.True(t, coordinator.IsKind(err, coordinator.KindTimeout))
	assert.Equal(t, models.LineStatusForceDone, line.Status())
	assert.Contains(t, out, "Cancel payment from terminal device")
}
