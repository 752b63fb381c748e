package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/config"
)

func TestConfigCommand_RedactsSecrets(t *testing.T) {
	config.MockConfig(&config.Configuration{
		ProjectName: "Till 1",
		Gateway:     config.GatewayConfig{URL: "http://gw", SecretKey: "s3cr3t"},
		Terminal:    config.TerminalConfig{TID: "10001234", SecureKey: "merchant-key"},
	})

	var out bytes.Buffer
	cmd := configCommand()
	cmd.SetOut(&out)
	require.NoError(t, cmd.RunE(cmd, nil))

	var printed config.Configuration
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, "Till 1", printed.ProjectName)
	assert.Equal(t, "10001234", printed.Terminal.TID)
	assert.Equal(t, redacted, printed.Terminal.SecureKey)
	assert.Equal(t, redacted, printed.Gateway.SecretKey)
	assert.NotContains(t, out.String(), "merchant-key")

	cnf, err := config.Fetch()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cnf.Gateway.SecretKey)
}
