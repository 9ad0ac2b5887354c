package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ventaflow/ventabot/core/logger"
)

// Order is one confirmed purchase archived for back office use.
type Order struct {
	ID           uuid.UUID `db:"id"`
	Identity     string    `db:"identity"`
	DNI          string    `db:"dni"`
	FullName     string    `db:"full_name"`
	Quantity     int       `db:"quantity"`
	Total        float64   `db:"total"`
	Address      string    `db:"address"`
	Email        string    `db:"email"`
	DeliveryDate string    `db:"delivery_date"`
	CreatedAt    time.Time `db:"created_at"`
}

// Orders is the archive repository.
type Orders struct {
	db *sqlx.DB
}

// NewOrders wraps the connection in the archive repository.
func NewOrders(db *sqlx.DB) *Orders {
	return &Orders{db: db}
}

const insertOrder = `
INSERT INTO orders (id, identity, dni, full_name, quantity, total, address, email, delivery_date, created_at)
VALUES (:id, :identity, :dni, :full_name, :quantity, :total, :address, :email, :delivery_date, :created_at)`

// Save archives the order, assigning an ID and timestamp when unset.
func (o *Orders) Save(ctx context.Context, ord *Order) error {
	if ord == nil {
		return fmt.Errorf("storage: nil order")
	}
	if ord.ID == uuid.Nil {
		ord.ID = uuid.New()
	}
	if ord.CreatedAt.IsZero() {
		ord.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	if _, err := o.db.NamedExecContext(ctx, insertOrder, ord); err != nil {
		logger.Error(ctx, "db", "order.save.error",
			slog.String("order_id", ord.ID.String()),
			slog.Any("err", err),
		)
		return fmt.Errorf("storage: save order: %w", err)
	}
	logger.Info(ctx, "db", "order.save.ok",
		slog.String("order_id", ord.ID.String()),
		slog.Int("quantity", ord.Quantity),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// LastByIdentity returns the most recent archived order for an identity.
func (o *Orders) LastByIdentity(ctx context.Context, identity string) (*Order, error) {
	var ord Order
	err := o.db.GetContext(ctx, &ord,
		`SELECT id, identity, dni, full_name, quantity, total, address, email, delivery_date, created_at
		 FROM orders WHERE identity = $1 ORDER BY created_at DESC LIMIT 1`, identity)
	if err != nil {
		return nil, fmt.Errorf("storage: last order for %s: %w", identity, err)
	}
	return &ord, nil
}
