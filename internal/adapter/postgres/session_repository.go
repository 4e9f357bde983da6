package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/livecart/internal/domain"
)

const uniqueViolation = "23505"

const sessionColumns = `id, room_name, provider_ingress_id, COALESCE(provider_egress_id, ''), is_active, started_at, ended_at, created_at, updated_at`

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func scanSession(row pgx.Row) (*domain.LiveSession, error) {
	var s domain.LiveSession
	err := row.Scan(
		&s.ID,
		&s.RoomName,
		&s.ProviderIngressID,
		&s.ProviderEgressID,
		&s.IsActive,
		&s.StartedAt,
		&s.EndedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Create(ctx context.Context, roomName, providerIngressID string) (*domain.LiveSession, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO live_sessions (room_name, provider_ingress_id)
		VALUES ($1, $2)
		RETURNING `+sessionColumns,
		roomName, providerIngressID)

	s, err := scanSession(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, domain.ErrDuplicateIngress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) getOne(ctx context.Context, what, where string, arg any) (*domain.LiveSession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM live_sessions WHERE `+where, arg)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by %s: %w", what, err)
	}
	return s, nil
}

func (r *SessionRepo) GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.LiveSession, error) {
	return r.getOne(ctx, "ID", "id = $1", sessionID)
}

func (r *SessionRepo) GetByProviderIngressID(ctx context.Context, providerIngressID string) (*domain.LiveSession, error) {
	return r.getOne(ctx, "ingress ID", "provider_ingress_id = $1", providerIngressID)
}

// GetByRoomName returns the most recently created session for a room.
func (r *SessionRepo) GetByRoomName(ctx context.Context, roomName string) (*domain.LiveSession, error) {
	return r.getOne(ctx, "room name", "room_name = $1 ORDER BY created_at DESC LIMIT 1", roomName)
}

func (r *SessionRepo) List(ctx context.Context) ([]domain.LiveSession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM live_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LiveSession, error) {
		s, err := scanSession(row)
		if err != nil {
			return domain.LiveSession{}, err
		}
		return *s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepo) MarkActive(ctx context.Context, sessionID uuid.UUID, startedAt time.Time) (bool, error) {
	var transitioned bool
	err := r.pool.QueryRow(ctx, `
		WITH prev AS (
			SELECT is_active FROM live_sessions WHERE id = $1 FOR UPDATE
		)
		UPDATE live_sessions s
		SET is_active  = TRUE,
		    started_at = CASE WHEN prev.is_active THEN s.started_at ELSE $2 END,
		    updated_at = NOW()
		FROM prev
		WHERE s.id = $1
		RETURNING NOT prev.is_active`,
		sessionID, startedAt).Scan(&transitioned)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, domain.ErrSessionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark session active: %w", err)
	}
	return transitioned, nil
}

func (r *SessionRepo) FinalizeEnd(ctx context.Context, sessionID uuid.UUID, endedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE live_sessions
		SET is_active = FALSE,
		    ended_at = $2,
		    provider_egress_id = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND is_active`,
		sessionID, endedAt)
	if err != nil {
		return false, fmt.Errorf("failed to finalize session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SessionRepo) SetEgress(ctx context.Context, sessionID uuid.UUID, egressID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE live_sessions SET provider_egress_id = $2, updated_at = NOW() WHERE id = $1`,
		sessionID, egressID)
	if err != nil {
		return fmt.Errorf("failed to set egress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepo) ClearEgress(ctx context.Context, sessionID uuid.UUID, egressID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE live_sessions SET provider_egress_id = NULL, updated_at = NOW()
		WHERE id = $1 AND provider_egress_id = $2`,
		sessionID, egressID)
	if err != nil {
		return false, fmt.Errorf("failed to clear egress: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
