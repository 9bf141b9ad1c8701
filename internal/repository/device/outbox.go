package device

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/devsearch/internal/domain/outbox"
)

// Pending returns up to limit markers with fewer than maxAttempts attempts, oldest first.
func (r *Repo) Pending(ctx context.Context, limit, maxAttempts int) ([]outbox.Entry, error) {
	ctx, cancel := r.client.WithTimeout(ctx)
	defer cancel()

	rows, err := r.client.DB().QueryContext(ctx, pendingSQL, maxAttempts, limit)
	if err != nil {
		return nil, classify("outbox pending", err)
	}
	defer rows.Close()

	var out []outbox.Entry
	for rows.Next() {
		var (
			e  outbox.Entry
			op string
		)
		if err := rows.Scan(&e.DeviceID, &op, &e.Attempts, &e.LastError); err != nil {
			return nil, classify("scan outbox entry", err)
		}
		e.Op = outbox.Op(op)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("outbox pending", err)
	}
	return out, nil
}

// Ack removes the marker of a device if it still asks for op.
// A marker replaced by a newer operation is left alone.
func (r *Repo) Ack(ctx context.Context, id int64, op outbox.Op) error {
	ctx, cancel := r.client.WithTimeout(ctx)
	defer cancel()

	if _, err := r.client.DB().ExecContext(ctx, ackSQL, id, string(op)); err != nil {
		return classify(fmt.Sprintf("outbox ack %d", id), err)
	}
	return nil
}

// Fail records a failed attempt on a marker.
func (r *Repo) Fail(ctx context.Context, id int64, reason string) error {
	ctx, cancel := r.client.WithTimeout(ctx)
	defer cancel()

	if _, err := r.client.DB().ExecContext(ctx, failSQL, reason, id); err != nil {
		return classify(fmt.Sprintf("outbox fail %d", id), err)
	}
	return nil
}

// CountPending returns the backlog size and how much of it is exhausted.
func (r *Repo) CountPending(ctx context.Context, maxAttempts int) (outbox.Stats, error) {
	ctx, cancel := r.client.WithTimeout(ctx)
	defer cancel()

	var s outbox.Stats
	if err := r.client.DB().QueryRowContext(ctx, statsSQL, maxAttempts).Scan(&s.Pending, &s.Exhausted); err != nil {
		return outbox.Stats{}, classify("outbox stats", err)
	}
	return s, nil
}
