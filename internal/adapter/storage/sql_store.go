package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const topicProducts = "products"

// SQLStore keeps the product and order collections of one application in a
// MySQL or SQLite database. Product changes are announced through notifier
// so subscribers can re-read the collection.
type SQLStore struct {
	db       *sql.DB
	appID    string
	notifier port.ChangeNotifier
	logger   *slog.Logger
}

func NewSQLStore(db *sql.DB, appID string, notifier port.ChangeNotifier, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, appID: appID, notifier: notifier, logger: logger}
}

func (s *SQLStore) topic(name string) string {
	return s.appID + ":" + name
}

func (s *SQLStore) SubscribeProducts(ctx context.Context) (<-chan port.ProductSnapshot, func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	// listen before the first read so no change between the two is missed
	signals, err := s.notifier.Listen(ctx, s.topic(topicProducts))
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("listen products: %w", err)
	}

	out := make(chan port.ProductSnapshot)
	go func() {
		defer close(out)

		send := func() bool {
			products, err := s.ListProducts(ctx)
			if ctx.Err() != nil {
				return false
			}
			select {
			case out <- port.ProductSnapshot{Products: products, Err: err}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok || !send() {
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

func (s *SQLStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, price, image_url, stock
		FROM products WHERE app_id = ?
		ORDER BY created_at, id`, s.appID)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", classify(err))
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query products: %w", classify(err))
	}
	return products, nil
}

func (s *SQLStore) CreateProduct(ctx context.Context, p domain.Product) (string, error) {
	id, err := newDocumentID()
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, app_id, name, description, price, image_url, stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.appID, p.Name, p.Description, p.Price, p.ImageURL, p.Stock, time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert product: %w", classify(err))
	}

	if err := s.notifier.Publish(ctx, s.topic(topicProducts)); err != nil {
		s.logger.Warn("failed to announce product change", "product_id", id, "error", err)
	}
	return id, nil
}

func (s *SQLStore) CreateOrder(ctx context.Context, order domain.Order) (string, error) {
	id, err := newDocumentID()
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", classify(err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, app_id, user_id, total_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, s.appID, order.UserID, order.Total, string(order.Status), order.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert order: %w", classify(err))
	}

	for i, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, name, price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, line.ProductID, line.Name, line.Price, line.Quantity,
		)
		if err != nil {
			return "", fmt.Errorf("insert order item: %w", classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit order: %w", classify(err))
	}
	return id, nil
}

func (s *SQLStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_amount, status, created_at
		FROM orders WHERE app_id = ? AND id = ?`, s.appID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", classify(err))
	}

	if order.Lines, err = s.orderLines(ctx, order.ID); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *SQLStore) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, total_amount, status, created_at
		FROM orders WHERE app_id = ? AND user_id = ?
		ORDER BY created_at DESC, id DESC`, s.appID, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", classify(err))
	}

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", classify(err))
	}

	// lines are loaded after the cursor is closed; SQLite runs on a single
	// connection
	for i := range orders {
		if orders[i].Lines, err = s.orderLines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *SQLStore) orderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, price, quantity
		FROM order_items WHERE order_id = ?
		ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", classify(err))
	}
	defer rows.Close()

	lines := []domain.OrderLine{}
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Price, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o       domain.Order
		status  string
		created int64
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Total, &status, &created); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = time.UnixMilli(created)
	return o, nil
}

// newDocumentID returns a time-ordered id so that insertion order survives
// rows created within the same millisecond.
func newDocumentID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}
