package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"faturas/internal/core"
	"faturas/internal/log"
	"faturas/internal/sources"

	_ "modernc.org/sqlite"
)

const selectColumns = `account_id, installation_id, billing_month,
	consumed_energy_kwh, distributed_generation_energy_kwh, offset_energy_kwh,
	energy_cost, distributed_generation_cost, illumination_contribution, compensation_savings`

// SQLiteRepository is a record source backed by a local SQLite file.
// Records are returned in insertion order.
type SQLiteRepository struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// Ensure interface conformance
var (
	_ sources.RecordSource        = (*SQLiteRepository)(nil)
	_ sources.AccountRecordSource = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	return &SQLiteRepository{
		db:     db,
		path:   dbPath,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadAll implements sources.RecordSource.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM faturas ORDER BY id`)
	if err != nil {
		return nil, r.fetchError("load records", err)
	}
	return r.scan(rows, "load records")
}

// LoadByAccount implements sources.AccountRecordSource.
func (r *SQLiteRepository) LoadByAccount(ctx context.Context, accountID string) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM faturas WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, r.fetchError("load account records", err)
	}
	return r.scan(rows, "load account records")
}

func (r *SQLiteRepository) scan(rows *sql.Rows, op string) ([]core.Invoice, error) {
	defer rows.Close()

	var out []core.Invoice
	for rows.Next() {
		var (
			inv     core.Invoice
			amounts [7]sql.NullString
		)
		if err := rows.Scan(&inv.AccountID, &inv.InstallationID, &inv.BillingMonth,
			&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5], &amounts[6]); err != nil {
			return nil, r.fetchError(op, err)
		}
		targets := []*core.Amount{
			&inv.ConsumedEnergyKWh, &inv.DistributedGenerationEnergyKWh, &inv.OffsetEnergyKWh,
			&inv.EnergyCost, &inv.DistributedGenerationCost, &inv.IlluminationContribution, &inv.CompensationSavings,
		}
		for i, ns := range amounts {
			if ns.Valid {
				*targets[i] = core.ParseAmount(ns.String)
			}
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fetchError(op, err)
	}
	return out, nil
}

// InsertInvoices appends records in order inside one transaction. Invalid
// amounts keep their raw text so they read back as invalid.
func (r *SQLiteRepository) InsertInvoices(ctx context.Context, records []core.Invoice) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO faturas (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, inv := range records {
		if _, err := stmt.ExecContext(ctx, inv.AccountID, inv.InstallationID, inv.BillingMonth,
			amountValue(inv.ConsumedEnergyKWh), amountValue(inv.DistributedGenerationEnergyKWh), amountValue(inv.OffsetEnergyKWh),
			amountValue(inv.EnergyCost), amountValue(inv.DistributedGenerationCost),
			amountValue(inv.IlluminationContribution), amountValue(inv.CompensationSavings)); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.InfoContext(ctx, "Invoices saved to SQLite", log.FieldRecords, len(records))
	return nil
}

// Truncate removes every stored record.
func (r *SQLiteRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM faturas`); err != nil {
		return fmt.Errorf("truncate faturas: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) fetchError(op string, err error) error {
	return &core.FetchError{Op: op, URL: "sqlite://" + r.path, Err: err}
}

func amountValue(a core.Amount) sql.NullString {
	if a.Valid() {
		return sql.NullString{String: a.Decimal().String(), Valid: true}
	}
	if a.Raw() == "" && a.Err() == core.ErrMissingAmount {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Raw(), Valid: true}
}
