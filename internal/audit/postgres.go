package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PostgresStore persists audit entries to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		return nil
	}
	return &PostgresStore{db: db}
}

// Insert writes one entry.
func (s *PostgresStore) Insert(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO audit_log_entries (
			id, ts, event_type, severity, user_id, agent_id, session_id, request_id,
			action, description, metadata, safety_related, requires_admin_review,
			admin_reviewed, reviewed_by, reviewed_at, classification, retention_days
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		entry.EventType,
		entry.Severity,
		nullString(entry.UserID),
		nullString(entry.AgentID),
		nullString(entry.SessionID),
		nullString(entry.RequestID),
		entry.Action,
		nullString(entry.Description),
		[]byte(entry.Metadata),
		entry.SafetyRelated,
		entry.RequiresAdminReview,
		entry.AdminReviewed,
		nullString(entry.ReviewedBy),
		entry.ReviewedAt,
		entry.Classification,
		entry.RetentionDays,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to insert entry: %w", err)
	}
	return nil
}

// List retrieves entries matching the filter, oldest first.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, ts, event_type, severity, user_id, agent_id, session_id, request_id,
			   action, description, metadata, safety_related, requires_admin_review,
			   admin_reviewed, reviewed_by, reviewed_at, classification, retention_days
		FROM audit_log_entries
		WHERE 1=1
	`
	var args []interface{}
	argIdx := 1

	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argIdx)
		args = append(args, filter.Severity)
		argIdx++
	}
	if filter.SafetyOnly {
		query += " AND safety_related = TRUE"
	}
	if filter.PendingReview {
		query += " AND requires_admin_review = TRUE AND admin_reviewed = FALSE"
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, filter.Until)
		argIdx++
	}

	query += " ORDER BY ts ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var userID, agentID, sessionID, requestID, description, reviewedBy sql.NullString
		var reviewedAt sql.NullTime
		var metadata []byte
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.EventType, &e.Severity,
			&userID, &agentID, &sessionID, &requestID,
			&e.Action, &description, &metadata,
			&e.SafetyRelated, &e.RequiresAdminReview, &e.AdminReviewed,
			&reviewedBy, &reviewedAt, &e.Classification, &e.RetentionDays,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		e.UserID = userID.String
		e.AgentID = agentID.String
		e.SessionID = sessionID.String
		e.RequestID = requestID.String
		e.Description = description.String
		e.ReviewedBy = reviewedBy.String
		if reviewedAt.Valid {
			t := reviewedAt.Time
			e.ReviewedAt = &t
		}
		e.Metadata = metadata
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: row iteration failed: %w", err)
	}

	return entries, nil
}

// MarkReviewed completes review on the given ids. Already-reviewed entries
// are left untouched.
func (s *PostgresStore) MarkReviewed(ctx context.Context, ids []string, reviewer string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE audit_log_entries
		SET admin_reviewed = TRUE, reviewed_by = $1, reviewed_at = $2
		WHERE admin_reviewed = FALSE AND id = ANY($3::uuid[])
	`
	res, err := s.db.ExecContext(ctx, query, reviewer, at, idArray(ids))
	if err != nil {
		return 0, fmt.Errorf("audit: failed to mark reviewed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: rows affected unavailable: %w", err)
	}
	return int(affected), nil
}

// DeleteExpired removes entries past retention that have been reviewed.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		DELETE FROM audit_log_entries
		WHERE admin_reviewed = TRUE
		  AND ts + (retention_days || ' days')::interval < $1
	`
	res, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("audit: failed to delete expired entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: rows affected unavailable: %w", err)
	}
	return int(affected), nil
}

// idArray renders ids as a Postgres array literal so the statement stays
// portable across database/sql drivers.
func idArray(ids []string) string {
	return "{" + strings.Join(ids, ",") + "}"
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
