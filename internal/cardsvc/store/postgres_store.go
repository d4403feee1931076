package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userCardsSchema = `
CREATE TABLE IF NOT EXISTS user_cards (
	id            BIGSERIAL PRIMARY KEY,
	user_id       TEXT        NOT NULL,
	serial_number TEXT        NOT NULL,
	name          TEXT        NOT NULL,
	set_name      TEXT        NOT NULL,
	rarity        TEXT        NOT NULL,
	variant       TEXT        NOT NULL DEFAULT '',
	stats         JSONB       NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT unique_serial_number UNIQUE (serial_number)
);
CREATE INDEX IF NOT EXISTS user_cards_user_id_idx ON user_cards (user_id, id);
`

// PostgresStore keeps collections in the user_cards table. The id column
// preserves acquisition order.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, userCardsSchema); err != nil {
		return fmt.Errorf("create user_cards schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CardsFor(ctx context.Context, userID string) ([]models.CardRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT serial_number, name, set_name, rarity, variant, stats
		FROM user_cards
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cards for user %s: %w", userID, err)
	}
	defer rows.Close()

	cards := []models.CardRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return cards, nil
}

func (s *PostgresStore) Append(ctx context.Context, userID string, card models.CardInstance) error {
	stats, err := json.Marshal(card.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO user_cards (user_id, serial_number, name, set_name, rarity, variant, stats)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, userID, card.SerialNumber, card.Name, card.Set, string(card.Rarity), card.Variant, stats)
	if err != nil {
		return insertError(err, userID, card.SerialNumber)
	}
	return nil
}

// insertError maps a unique violation on the serial column to ErrDuplicateSerial.
func insertError(err error, userID, serial string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "unique_serial_number" {
		return fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
	}
	return fmt.Errorf("insert card %s for user %s: %w", serial, userID, err)
}

func (s *PostgresStore) Serials(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT serial_number FROM user_cards`)
	if err != nil {
		return nil, fmt.Errorf("query serials: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			return nil, fmt.Errorf("scan serial: %w", err)
		}
		out[sn] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) (Collections, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, serial_number, name, set_name, rarity, variant, stats
		FROM user_cards
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	all := Collections{}
	for rows.Next() {
		var (
			userID string
			rec    models.CardRecord
			rarity string
			stats  []byte
		)
		if err := rows.Scan(&userID, &rec.SerialNumber, &rec.Name, &rec.Set, &rarity, &rec.Variant, &stats); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		rec.Rarity = models.Rarity(rarity)
		if err := json.Unmarshal(stats, &rec.Stats); err != nil {
			return nil, fmt.Errorf("decode stats of %s: %w", rec.SerialNumber, err)
		}
		all[userID] = append(all[userID], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return all, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.CardRecord, error) {
	var (
		rec    models.CardRecord
		rarity string
		stats  []byte
	)
	if err := row.Scan(&rec.SerialNumber, &rec.Name, &rec.Set, &rarity, &rec.Variant, &stats); err != nil {
		return models.CardRecord{}, fmt.Errorf("scan card: %w", err)
	}
	rec.Rarity = models.Rarity(rarity)
	if err := json.Unmarshal(stats, &rec.Stats); err != nil {
		return models.CardRecord{}, fmt.Errorf("decode stats of %s: %w", rec.SerialNumber, err)
	}
	return rec, nil
}
