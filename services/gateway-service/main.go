package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/afs"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/config"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/gateway"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/lock"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/metrics"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/patterns"
)

const serviceName = "gateway-service"

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func main() {
	if err := config.InitConfig("afs.json"); err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	cnf, err := config.Fetch()
	if err != nil {
		log.Fatal(err)
	}

	bulkhead := patterns.NewBulkhead(cnf.Terminal.MaxConcurrent, patterns.BulkheadWait, "Terminal", serviceName)

	var locker *lock.TerminalLock
	if cnf.Redis.Dns != "" {
		client, err := lock.NewRedisClient(context.Background(), cnf.Redis.Dns)
		if err != nil {
			log.Fatal("Failed to connect to redis: ", err)
		}
		defer client.Close()
		locker = lock.NewTerminalLock(client, time.Duration(cnf.Terminal.LockTimeoutSec)*time.Second)
		log.Info("Terminal lock enabled")
	}

	backend := gateway.NewBackend(bulkhead, locker)
	err = backend.Configure(cnf.Terminal.MethodID, afs.Credentials{
		ServiceURL:   cnf.Terminal.ServiceURL,
		TID:          cnf.Terminal.TID,
		MID:          cnf.Terminal.MID,
		SecureKey:    cnf.Terminal.SecureKey,
		Username:     cnf.Terminal.Username,
		FullName:     cnf.Terminal.FullName,
		CurrencyCode: cnf.Terminal.CurrencyCode,
	}, time.Duration(cnf.Terminal.TimeoutSec)*time.Second)
	if err != nil {
		// requests for the method answer "not configured" until fixed
		log.WithError(err).WithField("method_id", cnf.Terminal.MethodID).Warn("Terminal is not configured")
	}

	router := gin.Default()
	router.Use(metrics.PrometheusMiddleware(serviceName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/gateway/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":   serviceName,
			"status":    "healthy",
			"method_id": cnf.Terminal.MethodID,
			"tid":       cnf.Terminal.TID,
			"test_mode": cnf.Terminal.TestMode,
			"bulkhead": gin.H{
				"name":     bulkhead.GetName(),
				"in_use":   bulkhead.InUse(),
				"capacity": bulkhead.Capacity(),
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	gateway.NewHandler(backend).Routes(router, cnf.Gateway.SecretKey, cnf.RateLimit)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info("Gateway Service starting on port ", cnf.GatewayService.Port)
	if err := router.Run(":" + cnf.GatewayService.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
