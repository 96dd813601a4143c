package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"facturas/internal/core"
	"facturas/internal/store"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const invoiceColumns = `id, number, date, type, entity, concept, base, tax_pct, payment, category, notes, pdf_path, archived`

const insertInvoice = `INSERT INTO invoices (` + invoiceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const upsertInvoice = insertInvoice + ` ON CONFLICT(id) DO UPDATE SET
	number = excluded.number,
	date = excluded.date,
	type = excluded.type,
	entity = excluded.entity,
	concept = excluded.concept,
	base = excluded.base,
	tax_pct = excluded.tax_pct,
	payment = excluded.payment,
	category = excluded.category,
	notes = excluded.notes,
	pdf_path = excluded.pdf_path,
	archived = excluded.archived`

// SQLiteRepository is the indexed backend: one table keyed by id with a
// unique index on the invoice number.
type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetAll implements store.Reader
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices`)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]core.Invoice, 0)
	for rows.Next() {
		var (
			inv core.Invoice
			typ string
		)
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.Date, &typ, &inv.Entity, &inv.Concept,
			&inv.Base, &inv.TaxPct, &inv.Payment, &inv.Category, &inv.Notes, &inv.PDFPath, &inv.Archived); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.Type = core.InvoiceType(typ)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return invoices, nil
}

// Add implements store.Writer
func (r *SQLiteRepository) Add(ctx context.Context, inv core.Invoice) (string, error) {
	if _, err := r.db.ExecContext(ctx, insertInvoice, invoiceArgs(inv)...); err != nil {
		return "", fmt.Errorf("insert invoice: %w", translateError(err, inv))
	}

	slog.DebugContext(ctx, "Invoice inserted into SQLite",
		"id", inv.ID,
		"number", inv.Number)

	return inv.ID, nil
}

// Put implements store.Writer
func (r *SQLiteRepository) Put(ctx context.Context, inv core.Invoice) (string, error) {
	if _, err := r.db.ExecContext(ctx, upsertInvoice, invoiceArgs(inv)...); err != nil {
		return "", fmt.Errorf("upsert invoice: %w", translateError(err, inv))
	}

	slog.DebugContext(ctx, "Invoice upserted in SQLite",
		"id", inv.ID,
		"number", inv.Number,
		"archived", inv.Archived)

	return inv.ID, nil
}

// Delete implements store.Writer
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}

// ClearAndImport implements store.Importer. The clear and every insert share
// one transaction, so a failing insert leaves the previous collection intact.
func (r *SQLiteRepository) ClearAndImport(ctx context.Context, invs []core.Invoice) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "Import rollback failed", "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM invoices`); err != nil {
		return fmt.Errorf("clear invoices: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertInvoice)
	if err != nil {
		return fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for i, inv := range invs {
		if _, err = stmt.ExecContext(ctx, invoiceArgs(inv)...); err != nil {
			return fmt.Errorf("import record %d: %w", i, translateError(err, inv))
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Invoices imported into SQLite", "count", len(invs))
	return nil
}

func invoiceArgs(inv core.Invoice) []any {
	return []any{
		inv.ID, inv.Number, inv.Date, string(inv.Type), inv.Entity, inv.Concept,
		core.CoerceFloat(inv.Base), core.CoerceFloat(inv.TaxPct),
		inv.Payment, inv.Category, inv.Notes, inv.PDFPath, inv.Archived,
	}
}

// translateError maps sqlite constraint violations onto the store errors.
func translateError(err error, inv core.Invoice) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return &store.ConflictError{Err: store.ErrDuplicateKey, ID: inv.ID, Number: inv.Number}
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		if strings.Contains(se.Error(), "invoices.id") {
			return &store.ConflictError{Err: store.ErrDuplicateKey, ID: inv.ID, Number: inv.Number}
		}
		return &store.ConflictError{Err: store.ErrDuplicateNumber, ID: inv.ID, Number: inv.Number}
	}
	return err
}
