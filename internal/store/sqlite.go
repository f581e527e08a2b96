package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/orderbell/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to :memory: is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// NewFromDB wraps an already-open database without running migrations.
func NewFromDB(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateOrder inserts the order row and its items. The order number is
// derived from the row id inside the same transaction.
func (s *SQLiteStore) CreateOrder(ctx context.Context, o *model.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			customer_name, customer_email, total, item_count, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.CustomerName, o.CustomerEmail, o.Total, o.ItemCount,
		string(model.OrderPlaced), now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading order id: %w", err)
	}
	number := model.OrderNumberBase + id

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET number = ? WHERE id = ?", number, id,
	); err != nil {
		return fmt.Errorf("numbering order %d: %w", id, err)
	}

	if len(o.Items) > 0 {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO order_items (order_id, sku, name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing item insert: %w", err)
		}
		defer stmt.Close()

		for i := range o.Items {
			it := &o.Items[i]
			if _, err := stmt.ExecContext(ctx, id, it.SKU, it.Name, it.Quantity, it.UnitPrice); err != nil {
				return fmt.Errorf("inserting item %s for order %d: %w", it.SKU, id, err)
			}
			it.OrderID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing order %d: %w", id, err)
	}

	o.ID = id
	o.Number = number
	o.Status = model.OrderPlaced
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// GetOrder retrieves a single order with its items.
func (s *SQLiteStore) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := s.db.QueryRowxContext(ctx, selectOrder+" WHERE id = ?", id)

	o, err := scanOrderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting order %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	items, err := s.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

// ListOrders returns orders newest first, without items.
func (s *SQLiteStore) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.RiderID != nil {
		conditions = append(conditions, "rider_id = ?")
		args = append(args, *filter.RiderID)
	}

	query := selectOrder
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// AssignRider sets the rider on an order and returns the updated order.
func (s *SQLiteStore) AssignRider(ctx context.Context, id int64, riderID string) (*model.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET rider_id = ?, status = ?, updated_at = ?
		WHERE id = ? AND status IN ('placed', 'assigned')`,
		riderID, string(model.OrderAssigned), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("assigning rider to order %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("assigning rider to order %d: %w", id, err)
	}
	if n == 0 {
		// Either missing or already past assignment.
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("order %d is %s: %w", id, o.Status, model.ErrBadRequest)
	}

	return s.GetOrder(ctx, id)
}

const selectOrder = `
	SELECT id, number, customer_name, customer_email, total, item_count,
		status, rider_id, created_at, updated_at
	FROM orders`

func (s *SQLiteStore) getItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT order_id, sku, name, quantity, unit_price
		FROM order_items WHERE order_id = ? ORDER BY rowid`, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying items for order %d: %w", orderID, err)
	}
	return items, nil
}

// rowScanner is satisfied by both *sqlx.Row and *sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanOrderRow scans a single orders row selected with selectOrder.
func scanOrderRow(row rowScanner) (model.Order, error) {
	var (
		o         model.Order
		status    string
		riderID   sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerName, &o.CustomerEmail, &o.Total, &o.ItemCount,
		&status, &riderID, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, err
		}
		return model.Order{}, fmt.Errorf("scanning order row: %w", err)
	}

	o.Status = model.OrderStatus(status)
	if riderID.Valid {
		o.RiderID = &riderID.String
	}
	o.CreatedAt = createdAt
	o.UpdatedAt = updatedAt

	return o, nil
}
