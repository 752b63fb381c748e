package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/apierror"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

const queryTimeout = 10 * time.Second

// Postgres is a Repository backed by afs.payment_records.
type Postgres struct {
	Conn *sql.DB
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) (int, error) {
	migrations := migrate.EmbedFileSystemMigrationSource{
		FileSystem: sqlFiles,
		Root:       "sql",
	}
	n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	logrus.WithField("applied", n).Info("Payment record migrations applied")
	return n, nil
}

func (p Postgres) Save(ctx context.Context, record models.PaymentRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := p.Conn.ExecContext(ctx, `
		INSERT INTO afs.payment_records (payment_id, order_ref, payment_method_id, amount, status, transaction_id, afs_transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (payment_id) DO UPDATE SET
			status = EXCLUDED.status,
			transaction_id = EXCLUDED.transaction_id,
			afs_transaction_id = EXCLUDED.afs_transaction_id
	`, record.PaymentID, record.OrderRef, record.PaymentMethodID, record.Amount, string(record.Status),
		record.TransactionID, record.TerminalTransactionID(), record.CreatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to save payment record", err)
	}
	return nil
}

func (p Postgres) Get(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := p.Conn.QueryRowContext(ctx, `
		SELECT payment_id, order_ref, payment_method_id, amount, status, transaction_id, afs_transaction_id, created_at
		FROM afs.payment_records
		WHERE payment_id = $1
	`, paymentID)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "payment record not found", nil)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to load payment record", err)
	}
	return record, nil
}

func (p Postgres) ListByOrder(ctx context.Context, orderRef string) ([]models.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := p.Conn.QueryContext(ctx, `
		SELECT payment_id, order_ref, payment_method_id, amount, status, transaction_id, afs_transaction_id, created_at
		FROM afs.payment_records
		WHERE order_ref = $1
		ORDER BY created_at
	`, orderRef)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to list payment records", err)
	}
	defer rows.Close()

	var records []models.PaymentRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to read payment record", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to list payment records", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	var status string
	err := s.Scan(&record.PaymentID, &record.OrderRef, &record.PaymentMethodID, &record.Amount, &status,
		&record.TransactionID, &record.AFSTransactionID, &record.CreatedAt)
	if err != nil {
		return nil, err
	}
	record.Status = models.LineStatus(status)
	if record.TransactionID == "" {
		record.TransactionID = record.AFSTransactionID
	}
	return &record, nil
}
