package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"tonvault/internal/models"
)

// ==================== Listener Cursor Queries ====================

// LoadCursor returns the last processed logical time for a vault. ok is
// false when the vault has never been processed.
func (db *DB) LoadCursor(ctx context.Context, vaultAddress string) (uint64, bool, error) {
	var cursor models.ListenerCursor
	query := `
		SELECT vault_address, last_lt, updated_at
		FROM listener_cursors
		WHERE vault_address = $1
	`
	err := db.GetContext(ctx, &cursor, query, vaultAddress)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(cursor.LastLT), true, nil
}

// SaveCursor stores the last processed logical time for a vault
func (db *DB) SaveCursor(ctx context.Context, vaultAddress string, lt uint64) error {
	query := `
		INSERT INTO listener_cursors (vault_address, last_lt, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (vault_address)
		DO UPDATE SET last_lt = EXCLUDED.last_lt, updated_at = NOW()
	`
	_, err := db.ExecContext(ctx, query, vaultAddress, int64(lt))
	return err
}

// ==================== Deposit Event Queries ====================

const depositEventColumns = `
	transaction_id, kind, query_id, swap_id, counterparty_address, owner_address,
	amount, withdrawal_deadline, public_withdrawal_deadline, cancellation_deadline,
	public_cancellation_deadline, tx_timestamp, block_ref`

// SaveDepositEvent stores a deposit event. Replays of the same transaction
// and query id are ignored.
func (db *DB) SaveDepositEvent(ctx context.Context, ev *models.DepositEvent) error {
	query := `
		INSERT INTO deposit_events (` + depositEventColumns + `)
		VALUES (
			:transaction_id, :kind, :query_id, :swap_id, :counterparty_address, :owner_address,
			:amount, :withdrawal_deadline, :public_withdrawal_deadline, :cancellation_deadline,
			:public_cancellation_deadline, :tx_timestamp, :block_ref
		)
		ON CONFLICT (transaction_id, query_id) DO NOTHING
	`
	_, err := db.NamedExecContext(ctx, query, ev)
	return err
}

// GetDepositEventsByTransaction retrieves the deposits recorded for a transaction
func (db *DB) GetDepositEventsByTransaction(ctx context.Context, transactionID string) ([]models.DepositEvent, error) {
	var events []models.DepositEvent
	query := `
		SELECT ` + depositEventColumns + `
		FROM deposit_events
		WHERE transaction_id = $1
		ORDER BY block_ref ASC, query_id ASC
	`
	err := db.SelectContext(ctx, &events, query, transactionID)
	return events, err
}

// GetDepositEventsBySwap retrieves every deposit registered for a swap id
func (db *DB) GetDepositEventsBySwap(ctx context.Context, swapID string) ([]models.DepositEvent, error) {
	var events []models.DepositEvent
	query := `
		SELECT ` + depositEventColumns + `
		FROM deposit_events
		WHERE swap_id = $1
		ORDER BY block_ref ASC
	`
	err := db.SelectContext(ctx, &events, query, swapID)
	return events, err
}

// ==================== Monitor Session Queries ====================

// CreateMonitorSession creates a pending session record
func (db *DB) CreateMonitorSession(ctx context.Context, session *models.MonitorSession) error {
	query := `
		INSERT INTO monitor_sessions (
			session_id, user_address, tx_hash, query_id, required_count,
			since_at, total_amount, result
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	return db.QueryRowContext(
		ctx, query,
		session.SessionID,
		session.UserAddress,
		session.TxHash,
		session.QueryID,
		session.RequiredCount,
		session.SinceAt,
		session.TotalAmount,
		session.Result,
	).Scan(&session.ID, &session.CreatedAt)
}

// FinishMonitorSession stores the final result of a session together with
// the transactions it matched
func (db *DB) FinishMonitorSession(ctx context.Context, sessionID string, result models.MonitorResult, matches []models.MonitorMatch, errMsg string) error {
	return db.InTransaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE monitor_sessions
			SET result = $1, matched_count = $2, error_message = $3, finished_at = NOW()
			WHERE session_id = $4
		`
		res, err := tx.ExecContext(ctx, query, result, len(matches), ToNullString(errMsg), sessionID)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("monitor session %s not found", sessionID)
		}

		for _, m := range matches {
			m.SessionID = sessionID
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO monitor_matches (session_id, tx_hash, query_id, tx_time)
				VALUES (:session_id, :tx_hash, :query_id, :tx_time)
				ON CONFLICT (session_id, tx_hash) DO NOTHING
			`, m)
			if err != nil {
				return fmt.Errorf("failed to insert match %s: %w", m.TxHash, err)
			}
		}
		return nil
	})
}

// GetMonitorSession retrieves a session by its public id
func (db *DB) GetMonitorSession(ctx context.Context, sessionID string) (*models.MonitorSession, error) {
	var session models.MonitorSession
	query := `
		SELECT id, session_id, user_address, tx_hash, query_id, required_count,
		       since_at, total_amount, result, matched_count, error_message,
		       created_at, finished_at
		FROM monitor_sessions
		WHERE session_id = $1
	`
	err := db.GetContext(ctx, &session, query, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &session, err
}

// GetMonitorMatches retrieves the transactions matched by a session
func (db *DB) GetMonitorMatches(ctx context.Context, sessionID string) ([]models.MonitorMatch, error) {
	var matches []models.MonitorMatch
	query := `
		SELECT session_id, tx_hash, query_id, tx_time
		FROM monitor_matches
		WHERE session_id = $1
		ORDER BY tx_time ASC
	`
	err := db.SelectContext(ctx, &matches, query, sessionID)
	return matches, err
}

// DeleteMonitorSessionsBefore removes finished sessions created before cutoff
// and returns how many were deleted
func (db *DB) DeleteMonitorSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM monitor_sessions
		WHERE created_at < $1 AND finished_at IS NOT NULL
	`
	res, err := db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
