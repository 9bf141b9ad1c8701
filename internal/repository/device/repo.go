// Package device is the record store gateway: device rows plus their
// search-index outbox markers in one relational database.
package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kailas-cloud/devsearch/internal/db/rdb"
	"github.com/kailas-cloud/devsearch/internal/domain"
	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/outbox"
)

// client is the consumer interface for the relational client (ISP).
type client interface {
	DB() *sql.DB
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	WithTimeout(ctx context.Context) (context.Context, context.CancelFunc)
}

// Repo implements usecase/device.RecordStore and usecase/reconcile.Outbox.
type Repo struct {
	client client
}

// New creates a record repository.
func New(c client) *Repo {
	return &Repo{client: c}
}

const (
	insertDeviceSQL = `INSERT INTO devices (title, content) VALUES ($1, $2) RETURNING id, title, content`
	selectDeviceSQL = `SELECT id, title, content FROM devices WHERE id = $1`
	deleteDeviceSQL = `DELETE FROM devices WHERE id = $1`
	existsDeviceSQL = `SELECT COUNT(*) FROM devices WHERE id = $1`
	listAfterSQL    = `SELECT id, title, content FROM devices WHERE id > $1 ORDER BY id LIMIT $2`

	enqueueSQL = `INSERT INTO device_index_outbox (device_id, op) VALUES ($1, $2)
ON CONFLICT (device_id) DO UPDATE SET
	op          = excluded.op,
	attempts    = 0,
	last_error  = NULL,
	enqueued_at = excluded.enqueued_at`
	pendingSQL = `SELECT device_id, op, attempts, COALESCE(last_error, '') FROM device_index_outbox
WHERE attempts < $1 ORDER BY enqueued_at, device_id LIMIT $2`
	ackSQL   = `DELETE FROM device_index_outbox WHERE device_id = $1 AND op = $2`
	failSQL  = `UPDATE device_index_outbox SET attempts = attempts + 1, last_error = $1 WHERE device_id = $2`
	statsSQL = `SELECT COUNT(*), COALESCE(SUM(CASE WHEN attempts >= $1 THEN 1 ELSE 0 END), 0) FROM device_index_outbox`
)

// Create persists a new device and its upsert marker in one transaction.
// The returned record carries the store-assigned id.
func (r *Repo) Create(ctx context.Context, in domdevice.Input) (domdevice.Record, error) {
	var rec domdevice.Record
	err := r.client.InTx(ctx, func(tx *sql.Tx) error {
		var (
			id             int64
			title, content string
		)
		if err := tx.QueryRowContext(ctx, insertDeviceSQL, in.Title, in.Content).Scan(&id, &title, &content); err != nil {
			return fmt.Errorf("insert device: %w", err)
		}
		if _, err := tx.ExecContext(ctx, enqueueSQL, id, string(outbox.OpUpsert)); err != nil {
			return fmt.Errorf("enqueue upsert %d: %w", id, err)
		}
		rec = domdevice.Reconstruct(id, title, content)
		return nil
	})
	if err != nil {
		return domdevice.Record{}, classify("create device", err)
	}
	return rec, nil
}

// Get returns a device by id.
func (r *Repo) Get(ctx context.Context, id int64) (domdevice.Record, error) {
	ctx, cancel := r.client.WithTimeout(ctx)
	defer cancel()

	var (
		gotID          int64
		title, content string
	)
	err := r.client.DB().QueryRowContext(ctx, selectDeviceSQL, id).Scan(&gotID, &title, &content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domdevice.Record{}, domain.ErrDeviceNotFound
		}
		return domdevice.Record{}, classify(fmt.Sprintf("get device %d", id), err)
	}
	return domdevice.Reconstruct(gotID, title, content), nil
}

// Delete removes a device and replaces its marker with a delete marker in one transaction.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	err := r.client.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteDeviceSQL, id)
		if err != nil {
			return fmt.Errorf("delete device: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete device: %w", err)
		}
		if n == 0 {
			return domain.ErrDeviceNotFound
		}
		if _, err := tx.ExecContext(ctx, enqueueSQL, id, string(outbox.OpDelete)); err != nil {
			return fmt.Errorf("enqueue delete %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDeviceNotFound) {
			return err
		}
		return classify(fmt.Sprintf("delete device %d", id), err)
	}
	return nil
}

// Exists checks if a device row exists.
func (r *Repo) Exists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := r.client.WithTimeout(ctx)
	defer cancel()

	var n int
	if err := r.client.DB().QueryRowContext(ctx, existsDeviceSQL, id).Scan(&n); err != nil {
		return false, classify(fmt.Sprintf("exists device %d", id), err)
	}
	return n > 0, nil
}

// ListAfter returns up to limit devices with id greater than afterID, in id order.
func (r *Repo) ListAfter(ctx context.Context, afterID int64, limit int) ([]domdevice.Record, error) {
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := r.client.WithTimeout(ctx)
	defer cancel()

	rows, err := r.client.DB().QueryContext(ctx, listAfterSQL, afterID, limit)
	if err != nil {
		return nil, classify("list devices", err)
	}
	defer rows.Close()

	out := make([]domdevice.Record, 0, limit)
	for rows.Next() {
		var (
			id             int64
			title, content string
		)
		if err := rows.Scan(&id, &title, &content); err != nil {
			return nil, classify("scan device", err)
		}
		out = append(out, domdevice.Reconstruct(id, title, content))
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list devices", err)
	}
	return out, nil
}

// classify maps driver errors to domain sentinels.
func classify(op string, err error) error {
	if rdb.IsConstraint(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
