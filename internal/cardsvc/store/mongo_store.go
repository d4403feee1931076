package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCardsCollection = "user_cards"

type cardDocument struct {
	UserID       string       `bson:"user_id"`
	Seq          int64        `bson:"seq"` // acquisition order
	SerialNumber string       `bson:"serial_number"`
	Name         string       `bson:"name"`
	Set          string       `bson:"set"`
	Rarity       string       `bson:"rarity"`
	Variant      string       `bson:"variant,omitempty"`
	Stats        models.Stats `bson:"stats"`
	CreatedAt    time.Time    `bson:"created_at"`
}

func (d cardDocument) record() models.CardRecord {
	return models.CardRecord{
		SerialNumber: d.SerialNumber,
		Name:         d.Name,
		Set:          d.Set,
		Rarity:       models.Rarity(d.Rarity),
		Stats:        d.Stats,
		Variant:      d.Variant,
	}
}

// MongoStore keeps one document per owned card in the user_cards collection.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(userCardsCollection), now: time.Now}
}

// EnsureIndexes creates the unique serial index and the per-user order index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "serial_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "seq", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create user_cards indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CardsFor(ctx context.Context, userID string) ([]models.CardRecord, error) {
	docs, err := s.find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("find cards for user %s: %w", userID, err)
	}
	cards := make([]models.CardRecord, 0, len(docs))
	for _, d := range docs {
		cards = append(cards, d.record())
	}
	return cards, nil
}

func (s *MongoStore) Append(ctx context.Context, userID string, card models.CardInstance) error {
	now := s.now()
	doc := cardDocument{
		UserID:       userID,
		Seq:          now.UnixNano(),
		SerialNumber: card.SerialNumber,
		Name:         card.Name,
		Set:          card.Set,
		Rarity:       string(card.Rarity),
		Variant:      card.Variant,
		Stats:        card.Stats,
		CreatedAt:    now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return insertDocumentError(err, userID, card.SerialNumber)
	}
	return nil
}

func insertDocumentError(err error, userID, serial string) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
	}
	return fmt.Errorf("insert card %s for user %s: %w", serial, userID, err)
}

func (s *MongoStore) Serials(ctx context.Context) (map[string]struct{}, error) {
	values, err := s.coll.Distinct(ctx, "serial_number", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct serials: %w", err)
	}
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if sn, ok := v.(string); ok {
			out[sn] = struct{}{}
		}
	}
	return out, nil
}

func (s *MongoStore) Snapshot(ctx context.Context) (Collections, error) {
	docs, err := s.find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find collections: %w", err)
	}
	all := Collections{}
	for _, d := range docs {
		all[d.UserID] = append(all[d.UserID], d.record())
	}
	return all, nil
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]cardDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []cardDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
