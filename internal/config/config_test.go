package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile_Defaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "afs.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"terminal": {"tid": "T100", "mid": "M200", "secure_key": "secret"}
	}`), 0o600))

	require.NoError(t, loadConfigFromFile(file))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "AFS Payment Terminal", cnf.ProjectName)
	assert.Equal(t, DEFAULT_POS_PORT, cnf.PosService.Port)
	assert.Equal(t, DEFAULT_GATEWAY_PORT, cnf.GatewayService.Port)
	assert.Equal(t, DEFAULT_SIMULATOR_SOAP_PATH, cnf.Simulator.SoapPath)
	assert.Equal(t, "http://localhost:8081", cnf.Gateway.URL)
	assert.Equal(t, DEFAULT_METHOD_ID, cnf.Terminal.MethodID)
	assert.Equal(t, DEFAULT_SERVICE_URL, cnf.Terminal.ServiceURL)
	assert.Equal(t, "512", cnf.Terminal.CurrencyCode)
	assert.Equal(t, 45, cnf.Terminal.TimeoutSec)
	assert.Equal(t, 60, cnf.Terminal.LockTimeoutSec)
	assert.Equal(t, "T100", cnf.Terminal.TID)
	assert.Nil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Equal(t, 10800, *cnf.RateLimit.CleanupIntervalSec)
}

func TestLoadConfigFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("AFS_TERMINAL_TID", "ENV-TID")
	t.Setenv("AFS_GATEWAY_URL", "http://gateway:9000/")
	t.Setenv("AFS_RATE_LIMIT_RPS", "5")

	require.NoError(t, loadConfigFromFile(filepath.Join(t.TempDir(), "missing.json")))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "ENV-TID", cnf.Terminal.TID)
	assert.Equal(t, "http://gateway:9000", cnf.Gateway.URL)
	require.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 10, *cnf.RateLimit.Burst)
}

func TestValidateAndAddDefaults_TestModeNeedsSandboxURL(t *testing.T) {
	cnf := Configuration{Terminal: TerminalConfig{TestMode: true}}
	assert.Error(t, cnf.validateAndAddDefaults())

	cnf = Configuration{Terminal: TerminalConfig{TestMode: true, ServiceURL: "http://localhost:8082/Ecr.Om.Abo/EcrComInterface.svc"}}
	assert.NoError(t, cnf.validateAndAddDefaults())
}

func TestMockConfig(t *testing.T) {
	MockConfig(&Configuration{ProjectName: "mocked"})
	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "mocked", cnf.ProjectName)
}
