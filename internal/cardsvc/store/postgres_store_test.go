package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
)

// fakeRow scans fixed column values in the order CardsFor selects them.
type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("want %d destinations, got %d", len(r), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r[i].(string)
		case *[]byte:
			*p = r[i].([]byte)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

func TestScanRecord_DecodesStats(t *testing.T) {
	row := fakeRow{
		"MTKZ-UC-KIRY-1", "Kira Ryosuke", "Matsukaze Kokuo High", "Uncommon", "",
		[]byte(`{"Offense":55,"Speed":60,"Defense":40,"Pass":52,"Dribble":58,"Shoot":61}`),
	}

	rec, err := scanRecord(row)
	require.NoError(t, err)
	assert.Equal(t, models.CardRecord{
		SerialNumber: "MTKZ-UC-KIRY-1",
		Name:         "Kira Ryosuke",
		Set:          "Matsukaze Kokuo High",
		Rarity:       models.Uncommon,
		Stats:        models.Stats{Offense: 55, Speed: 60, Defense: 40, Pass: 52, Dribble: 58, Shoot: 61},
	}, rec)
}

func TestScanRecord_BadStats(t *testing.T) {
	row := fakeRow{"ICHI-CM-ISYO-1", "Isagi Yoichi", "Ichinan High", "Common", "ISYO", []byte(`not json`)}

	_, err := scanRecord(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ICHI-CM-ISYO-1")
}

func TestInsertError(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "unique_serial_number"}
	err := insertError(dup, "42", "ICHI-CM-ISYO-1")
	assert.ErrorIs(t, err, ErrDuplicateSerial)
	assert.Contains(t, err.Error(), "ICHI-CM-ISYO-1")

	other := &pgconn.PgError{Code: "23505", ConstraintName: "user_cards_pkey"}
	assert.NotErrorIs(t, insertError(other, "42", "ICHI-CM-ISYO-1"), ErrDuplicateSerial)

	down := errors.New("connection refused")
	err = insertError(down, "42", "ICHI-CM-ISYO-1")
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrDuplicateSerial)
}

// Runs against a live database when CARD_TEST_POSTGRES_URL is set.
func TestPostgresStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("CARD_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("CARD_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool)
	require.NoError(t, s.EnsureSchema(ctx))

	user := "test-" + uuid.NewString()
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM user_cards WHERE user_id = $1`, user)
	})

	empty, err := s.CardsFor(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, empty)

	prefix := uuid.NewString()[:8]
	first := models.CardInstance{Name: "Isagi Yoichi", Set: "Ichinan High", Rarity: models.Common,
		Stats: models.Stats{Offense: 41, Speed: 39}, SerialNumber: prefix + "-1"}
	second := models.CardInstance{Name: "Kira Ryosuke", Set: "Matsukaze Kokuo High", Rarity: models.Uncommon,
		Variant: "KIRY", Stats: models.Stats{Shoot: -3}, SerialNumber: prefix + "-2"}
	require.NoError(t, s.Append(ctx, user, first))
	require.NoError(t, s.Append(ctx, user, second))

	cards, err := s.CardsFor(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []models.CardRecord{first.Record(), second.Record()}, cards)

	serials, err := s.Serials(ctx)
	require.NoError(t, err)
	assert.Contains(t, serials, first.SerialNumber)

	all, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, cards, all[user])

	err = s.Append(ctx, user, first)
	assert.ErrorIs(t, err, ErrDuplicateSerial)
}
