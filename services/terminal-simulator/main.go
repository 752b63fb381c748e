package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/config"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/metrics"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/simulator"
)

const serviceName = "terminal-simulator"

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

	terminal := simulator.NewTerminal(simulator.Options{
		ApproveAfter: cnf.Simulator.ApproveAfter,
		HoldTimeout:  time.Duration(cnf.Simulator.HoldSec) * time.Second,
		SecureKey:    cnf.Terminal.SecureKey,
		Service:      serviceName,
	})

	router := gin.Default()
	router.Use(metrics.PrometheusMiddleware(serviceName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	terminal.Routes(router, cnf.Simulator.SoapPath)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.WithFields(log.Fields{
		"soap_path":     cnf.Simulator.SoapPath,
		"approve_after": cnf.Simulator.ApproveAfter,
	}).Info("Terminal Simulator starting on port ", cnf.Simulator.Port)
	if err := router.Run(":" + cnf.Simulator.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
