package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-resto/internal/db"
)

// Log is a persisted audit entry.
type Log struct {
	ID           uuid.UUID   `json:"id"`
	ActorKind    string      `json:"actorKind"`
	ActorUserID  pgtype.UUID `json:"actorUserId"`
	Action       string      `json:"action"`
	ResourceType string      `json:"resourceType"`
	ResourceID   pgtype.Text `json:"resourceId"`
	Method       string      `json:"method"`
	Path         string      `json:"path"`
	Route        pgtype.Text `json:"route"`
	Status       int32       `json:"status"`
	IP           pgtype.Text `json:"ip"`
	UserAgent    pgtype.Text `json:"userAgent"`
	RequestID    pgtype.Text `json:"requestId"`
	Metadata     []byte      `json:"metadata,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// InsertParams carries the fields of a new audit entry.
type InsertParams struct {
	ActorKind    string
	ActorUserID  pgtype.UUID
	Action       string
	ResourceType string
	ResourceID   pgtype.Text
	Method       string
	Path         string
	Route        pgtype.Text
	Status       int32
	IP           pgtype.Text
	UserAgent    pgtype.Text
	RequestID    pgtype.Text
	Metadata     []byte
}

// PGStore persists audit logs in Postgres.
type PGStore struct {
	DB db.DBTX
}

// InsertLog appends an audit entry.
func (s *PGStore) InsertLog(ctx context.Context, p InsertParams) (Log, error) {
	const q = `
INSERT INTO audit_logs (
    actor_kind, actor_user_id, action, resource_type, resource_id,
    method, path, route, status, ip, user_agent, request_id, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id, created_at`
	out := Log{
		ActorKind:    p.ActorKind,
		ActorUserID:  p.ActorUserID,
		Action:       p.Action,
		ResourceType: p.ResourceType,
		ResourceID:   p.ResourceID,
		Method:       p.Method,
		Path:         p.Path,
		Route:        p.Route,
		Status:       p.Status,
		IP:           p.IP,
		UserAgent:    p.UserAgent,
		RequestID:    p.RequestID,
		Metadata:     p.Metadata,
	}
	err := s.DB.QueryRow(ctx, q,
		p.ActorKind, p.ActorUserID, p.Action, p.ResourceType, p.ResourceID,
		p.Method, p.Path, p.Route, p.Status, p.IP, p.UserAgent, p.RequestID, p.Metadata,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return Log{}, err
	}
	return out, nil
}

// ListLogs returns audit entries, newest first.
func (s *PGStore) ListLogs(ctx context.Context, limit, offset int32) ([]Log, error) {
	const q = `
SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id,
       method, path, route, status, ip, user_agent, request_id, metadata, created_at
FROM audit_logs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	rows, err := s.DB.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(
			&l.ID, &l.ActorKind, &l.ActorUserID, &l.Action, &l.ResourceType, &l.ResourceID,
			&l.Method, &l.Path, &l.Route, &l.Status, &l.IP, &l.UserAgent, &l.RequestID, &l.Metadata, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
