package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_POS_PORT       = "8080"
	DEFAULT_GATEWAY_PORT   = "8081"
	DEFAULT_SIMULATOR_PORT = "8082"
	DEFAULT_METHOD_ID      = "1"
	DEFAULT_SERVICE_URL    = "https://ereceiptom.afs.com.bh/Ecr.Om.Abo/EcrComInterface.svc"
	DEFAULT_CURRENCY_CODE  = "512"

	DEFAULT_SIMULATOR_SOAP_PATH = "/Ecr.Om.Abo/EcrComInterface.svc"
)

var ConfigStore atomic.Value

type ServiceConfig struct {
	Port string `json:"port"`
}

type GatewayConfig struct {
	URL                   string `json:"url" envconfig:"AFS_GATEWAY_URL"`
	SecretKey             string `json:"secret_key" envconfig:"AFS_GATEWAY_SECRET_KEY"`
	MethodID              string `json:"method_id" envconfig:"AFS_GATEWAY_METHOD_ID"`
	TimeoutSec            int    `json:"timeout_sec" envconfig:"AFS_GATEWAY_TIMEOUT_SEC"`
	NotifyGatewayOnCancel bool   `json:"notify_gateway_on_cancel" envconfig:"AFS_GATEWAY_NOTIFY_ON_CANCEL"`
}

type TerminalConfig struct {
	MethodID       string `json:"method_id" envconfig:"AFS_TERMINAL_METHOD_ID"`
	ServiceURL     string `json:"service_url" envconfig:"AFS_TERMINAL_SERVICE_URL"`
	TID            string `json:"tid" envconfig:"AFS_TERMINAL_TID"`
	MID            string `json:"mid" envconfig:"AFS_TERMINAL_MID"`
	Username       string `json:"username" envconfig:"AFS_TERMINAL_USERNAME"`
	FullName       string `json:"full_name" envconfig:"AFS_TERMINAL_FULL_NAME"`
	SecureKey      string `json:"secure_key" envconfig:"AFS_TERMINAL_SECURE_KEY"`
	CurrencyCode   string `json:"currency_code" envconfig:"AFS_TERMINAL_CURRENCY_CODE"`
	TestMode       bool   `json:"test_mode" envconfig:"AFS_TERMINAL_TEST_MODE"`
	TimeoutSec     int    `json:"timeout_sec" envconfig:"AFS_TERMINAL_TIMEOUT_SEC"`
	MaxConcurrent  int    `json:"max_concurrent" envconfig:"AFS_TERMINAL_MAX_CONCURRENT"`
	LockTimeoutSec int    `json:"lock_timeout_sec" envconfig:"AFS_TERMINAL_LOCK_TIMEOUT_SEC"`
}

type SimulatorConfig struct {
	Port         string `json:"port"`
	SoapPath     string `json:"soap_path" envconfig:"AFS_SIMULATOR_SOAP_PATH"`
	ApproveAfter int    `json:"approve_after" envconfig:"AFS_SIMULATOR_APPROVE_AFTER"`
	HoldSec      int    `json:"hold_sec" envconfig:"AFS_SIMULATOR_HOLD_SEC"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"AFS_REDIS_DNS"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"AFS_DATA_SOURCE_DNS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"AFS_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"AFS_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"AFS_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Configuration struct {
	ProjectName    string           `json:"project_name" envconfig:"AFS_PROJECT_NAME"`
	PosService     ServiceConfig    `json:"pos_service"`
	GatewayService ServiceConfig    `json:"gateway_service"`
	Simulator      SimulatorConfig  `json:"simulator"`
	Gateway        GatewayConfig    `json:"gateway"`
	Terminal       TerminalConfig   `json:"terminal"`
	Redis          RedisConfig      `json:"redis"`
	DataSource     DataSourceConfig `json:"data_source"`
	RateLimit      RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("afs", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded. Create a json file called afs.json or set AFS_* environment variables")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "AFS Payment Terminal"
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Gateway.URL = strings.TrimRight(strings.TrimSpace(cnf.Gateway.URL), "/")
	cnf.Terminal.ServiceURL = strings.TrimSpace(cnf.Terminal.ServiceURL)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)

	if cnf.PosService.Port == "" {
		cnf.PosService.Port = DEFAULT_POS_PORT
	}
	if cnf.GatewayService.Port == "" {
		cnf.GatewayService.Port = DEFAULT_GATEWAY_PORT
	}
	if cnf.Simulator.Port == "" {
		cnf.Simulator.Port = DEFAULT_SIMULATOR_PORT
	}
	if cnf.Simulator.SoapPath == "" {
		cnf.Simulator.SoapPath = DEFAULT_SIMULATOR_SOAP_PATH
	}

	if cnf.Gateway.URL == "" {
		cnf.Gateway.URL = "http://localhost:" + cnf.GatewayService.Port
		log.Printf("Warning: Gateway URL not specified. Setting default: %s", cnf.Gateway.URL)
	}
	if cnf.Gateway.MethodID == "" {
		cnf.Gateway.MethodID = DEFAULT_METHOD_ID
	}
	if cnf.Gateway.TimeoutSec <= 0 {
		cnf.Gateway.TimeoutSec = 50
	}

	if cnf.Terminal.MethodID == "" {
		cnf.Terminal.MethodID = cnf.Gateway.MethodID
	}
	if cnf.Terminal.ServiceURL == "" {
		cnf.Terminal.ServiceURL = DEFAULT_SERVICE_URL
	}
	if cnf.Terminal.CurrencyCode == "" {
		cnf.Terminal.CurrencyCode = DEFAULT_CURRENCY_CODE
	}
	if cnf.Terminal.Username == "" {
		cnf.Terminal.Username = "pos"
	}
	if cnf.Terminal.FullName == "" {
		cnf.Terminal.FullName = cnf.ProjectName
	}
	if cnf.Terminal.TimeoutSec <= 0 {
		cnf.Terminal.TimeoutSec = 45
	}
	if cnf.Terminal.MaxConcurrent <= 0 {
		cnf.Terminal.MaxConcurrent = 4
	}
	if cnf.Terminal.LockTimeoutSec <= 0 {
		cnf.Terminal.LockTimeoutSec = cnf.Terminal.TimeoutSec + 15
	}

	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	if cnf.Terminal.TestMode && cnf.Terminal.ServiceURL == DEFAULT_SERVICE_URL {
		log.Println("Error: terminal test mode is enabled but the production service URL is configured")
		return errors.New("terminal test mode requires a non-production service URL")
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
