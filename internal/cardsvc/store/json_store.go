package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	log "github.com/sirupsen/logrus"
)

// JSONStore keeps every collection in one JSON file that is rewritten in full
// on each mutation.
type JSONStore struct {
	mu   sync.Mutex // one writer at a time
	path string
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// OpenJSONStore opens the ledger at path. A missing file is an empty ledger.
// A file that cannot be parsed is logged and read as empty, but Append
// refuses to overwrite it.
func OpenJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	s := NewJSONStore(path)
	_, err := s.load()
	switch {
	case err == nil:
	case errors.Is(err, ErrCorruptLedger):
		log.Warnf("ledger %s is unreadable, starting with an empty collection view: %v", path, err)
	default:
		log.Warnf("ledger %s could not be read, starting with an empty collection view: %v", path, err)
	}
	return s, nil
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) CardsFor(ctx context.Context, userID string) ([]models.CardRecord, error) {
	all, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	cards := all[userID]
	if cards == nil {
		cards = []models.CardRecord{}
	}
	return cards, nil
}

// Append reads the latest ledger from disk, appends the card to the user's
// collection and rewrites the file, all under the store lock.
func (s *JSONStore) Append(ctx context.Context, userID string, card models.CardInstance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return fmt.Errorf("append %s for user %s: %w", card.SerialNumber, userID, err)
	}
	all[userID] = append(all[userID], card.Record())

	if err := s.write(all); err != nil {
		return fmt.Errorf("append %s for user %s: %w", card.SerialNumber, userID, err)
	}
	return nil
}

func (s *JSONStore) Serials(ctx context.Context) (map[string]struct{}, error) {
	all, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return all.serials(), nil
}

// Snapshot returns the full ledger as currently on disk. An unparsable file
// reads as empty.
func (s *JSONStore) Snapshot(ctx context.Context) (Collections, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if errors.Is(err, ErrCorruptLedger) {
		log.Warnf("ledger %s: %v", s.path, err)
		return Collections{}, nil
	}
	return all, err
}

func (s *JSONStore) load() (Collections, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Collections{}, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return Collections{}, nil
	}

	all := Collections{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLedger, err)
	}
	return all, nil
}

func (s *JSONStore) write(all Collections) error {
	return writeJSONFile(s.path, all)
}
