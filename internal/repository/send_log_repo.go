package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"agendabot-backend/internal/store"
)

// SendLogRepo tracks when the assistant last sent a message to each user.
type SendLogRepo struct {
	store store.Store
}

func NewSendLogRepo(s store.Store) *SendLogRepo {
	return &SendLogRepo{store: s}
}

// LastSend returns the zero time when nothing was ever sent to uid.
func (r *SendLogRepo) LastSend(ctx context.Context, uid string) (time.Time, error) {
	v, ok, err := r.store.Get(ctx, lastSendKey(uid))
	if err != nil {
		return time.Time{}, fmt.Errorf("read last send: %w", err)
	}
	if !ok || v == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// A corrupt timestamp must not lock the user out.
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

func (r *SendLogRepo) MarkSend(ctx context.Context, uid string, at time.Time) error {
	if err := r.store.Set(ctx, lastSendKey(uid), strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("write last send: %w", err)
	}
	return nil
}

// Reset forgets the last send so the next command is answered immediately.
func (r *SendLogRepo) Reset(ctx context.Context, uid string) error {
	if err := r.store.Set(ctx, lastSendKey(uid), ""); err != nil {
		return fmt.Errorf("reset last send: %w", err)
	}
	return nil
}
