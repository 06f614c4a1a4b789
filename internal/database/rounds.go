// internal/database/rounds.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/bridgeduel/internal/cache"
)

// Schema creates the historian tables.
const Schema = `
CREATE TABLE IF NOT EXISTS rounds (
	id              UUID PRIMARY KEY,
	session_id      UUID NOT NULL,
	room_id         TEXT NOT NULL,
	deal            INT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'in_progress',
	start_time      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time        TIMESTAMPTZ,
	declarer        TEXT,
	contract_level  INT,
	contract_suit   TEXT,
	target          INT,
	declarer_tricks INT,
	defender_tricks INT,
	made            BOOLEAN,
	winner          TEXT
);

CREATE TABLE IF NOT EXISTS round_actions (
	round_id       UUID NOT NULL REFERENCES rounds(id),
	action_index   INT NOT NULL,
	actor          TEXT NOT NULL,
	action_type    TEXT NOT NULL,
	action_payload JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (round_id, action_index)
);
`

// EnsureSchema creates the tables if they are missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RoundID derives the round key from the host session and deal number.
func RoundID(session uuid.UUID, deal int) uuid.UUID {
	return uuid.NewSHA1(session, []byte("deal:"+strconv.Itoa(deal)))
}

// RoundSummary is the payload of a round_result record.
type RoundSummary struct {
	Declarer       string `json:"declarer"`
	Level          int    `json:"level"`
	Suit           string `json:"suit"`
	Target         int    `json:"target"`
	DeclarerTricks int    `json:"declarerTricks"`
	DefenderTricks int    `json:"defenderTricks"`
	Made           bool   `json:"made"`
	Winner         string `json:"winner"`
}

// ParseRoundSummary reads a round_result payload.
func ParseRoundSummary(payload map[string]interface{}) (RoundSummary, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return RoundSummary{}, err
	}
	var s RoundSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return RoundSummary{}, fmt.Errorf("round summary: %w", err)
	}
	return s, nil
}

// PersistActions writes a batch in one transaction.
func PersistActions(ctx context.Context, db TxBeginner, recs []cache.ActionRecord) error {
	return pgx.BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := InsertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of room %s: %w", rec.ActionIndex, rec.RoomID, err)
			}
		}
		return nil
	})
}

// InsertActionTx upserts the round row and inserts the action. A round_result
// record completes the round with its summary.
func InsertActionTx(ctx context.Context, tx pgx.Tx, rec cache.ActionRecord) error {
	roundID := RoundID(rec.SessionID, rec.Deal)

	upsertRoundQ := `
		INSERT INTO rounds (id, session_id, room_id, deal, status, start_time)
		VALUES ($1, $2, $3, $4, 'in_progress', to_timestamp($5 / 1000.0))
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertRoundQ, roundID, rec.SessionID, rec.RoomID, rec.Deal, rec.Timestamp); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO round_actions (round_id, action_index, actor, action_type, action_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, to_timestamp($6 / 1000.0))
		ON CONFLICT (round_id, action_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, actionInsertQ, roundID, rec.ActionIndex, rec.Actor, rec.ActionType, payload, rec.Timestamp); err != nil {
		return err
	}

	if rec.ActionType != cache.RoundResultAction {
		return nil
	}
	sum, err := ParseRoundSummary(rec.ActionPayload)
	if err != nil {
		return err
	}
	finalizeQ := `
		UPDATE rounds
		SET status = 'completed', end_time = to_timestamp($2 / 1000.0),
			declarer = $3, contract_level = $4, contract_suit = $5, target = $6,
			declarer_tricks = $7, defender_tricks = $8, made = $9, winner = $10
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, finalizeQ, roundID, rec.Timestamp,
		sum.Declarer, sum.Level, sum.Suit, sum.Target,
		sum.DeclarerTricks, sum.DefenderTricks, sum.Made, sum.Winner)
	return err
}

// MarkRoundAbandoned closes a round that saw no activity for too long.
func MarkRoundAbandoned(ctx context.Context, db TxBeginner, roundID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE rounds
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		_, err := tx.Exec(ctx, q, roundID)
		return err
	})
}
