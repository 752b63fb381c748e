package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/config"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/coordinator"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/gateway"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/metrics"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/pos"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/store"
)

const serviceName = "pos-service"

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

	records := openRepository(cnf)

	client := gateway.NewRPCClient(cnf.Gateway.URL, cnf.Gateway.SecretKey,
		time.Duration(cnf.Gateway.TimeoutSec)*time.Second, serviceName)

	svc := pos.NewService(records, cnf.Gateway.MethodID)
	svc.AddMethod(cnf.Gateway.MethodID, coordinator.New(client, pos.Notifier(), coordinator.Options{
		MethodID:              cnf.Gateway.MethodID,
		NotifyGatewayOnCancel: cnf.Gateway.NotifyGatewayOnCancel,
	}))

	router := gin.Default()
	router.Use(metrics.PrometheusMiddleware(serviceName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/circuit-breaker/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"gateway_circuit": client.Circuit().Status()})
	})

	svc.Routes(router)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cnf.PosService.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("POS Service starting on port ", cnf.PosService.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down POS Service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	svc.Shutdown()
}

func openRepository(cnf *config.Configuration) store.Repository {
	if cnf.DataSource.Dns == "" {
		log.Warn("No data source configured, payment records are kept in memory")
		return store.NewMemory()
	}

	db, err := store.ConnectDB(cnf.DataSource.Dns)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	if _, err := store.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	return store.Postgres{Conn: db}
}
