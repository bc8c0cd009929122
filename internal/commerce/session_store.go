package commerce

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

// SessionStore is the checkout session CRUD surface shared by the SQL and
// document backends.
type SessionStore interface {
	List(ctx context.Context, limit, offset int) ([]models.CheckoutSession, error)
	Get(ctx context.Context, shopSessionID string) (*models.CheckoutSession, error)
	Create(ctx context.Context, s models.CheckoutSession) (*models.CheckoutSession, error)
	Update(ctx context.Context, s models.CheckoutSession) (*models.CheckoutSession, error)
	Delete(ctx context.Context, shopSessionID string) error
}

type SQLSessionStore struct {
	db database.SQLDriver
}

func NewSQLSessionStore(db database.SQLDriver) *SQLSessionStore {
	return &SQLSessionStore{db: db}
}

func (s *SQLSessionStore) List(ctx context.Context, limit, offset int) ([]models.CheckoutSession, error) {
	return ListCheckoutSessions(ctx, s.db, limit, offset)
}

func (s *SQLSessionStore) Get(ctx context.Context, shopSessionID string) (*models.CheckoutSession, error) {
	return GetCheckoutSession(ctx, s.db, shopSessionID)
}

func (s *SQLSessionStore) Create(ctx context.Context, session models.CheckoutSession) (*models.CheckoutSession, error) {
	return CreateCheckoutSession(ctx, s.db, session)
}

func (s *SQLSessionStore) Update(ctx context.Context, session models.CheckoutSession) (*models.CheckoutSession, error) {
	return UpdateCheckoutSession(ctx, s.db, session)
}

func (s *SQLSessionStore) Delete(ctx context.Context, shopSessionID string) error {
	return DeleteCheckoutSession(ctx, s.db, shopSessionID)
}

const (
	sessionCollection     = "checkout_sessions"
	counterCollection     = "counters"
	sessionShopIDIndex    = "checkout_sessions_shop_session_id_unique"
	sessionCreatedAtIndex = "checkout_sessions_created_seq_idx"
)

// MongoSessionStore keeps checkout sessions as documents whose field names
// match the SQL columns. The internal id is the document _id; insert_seq
// comes from a counter document and orders sessions created in the same
// instant.
type MongoSessionStore struct {
	coll     *mongo.Collection
	counters *mongo.Collection
}

type sessionDocument struct {
	models.CheckoutSession `bson:",inline"`
	InsertSeq              int64 `bson:"insert_seq"`
}

func NewMongoSessionStore(md *database.MongoDriver) *MongoSessionStore {
	return &MongoSessionStore{
		coll:     md.Database().Collection(sessionCollection),
		counters: md.Database().Collection(counterCollection),
	}
}

func (m *MongoSessionStore) nextInsertSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: sessionCollection}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next checkout session sequence: %w", database.Classify(err))
	}
	return counter.Seq, nil
}

// EnsureIndexes creates the unique shop session index and the listing
// index. Safe to call repeatedly.
func (m *MongoSessionStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "shop_session_id", Value: 1}},
			Options: options.Index().SetName(sessionShopIDIndex).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "created_ts", Value: -1}, {Key: "insert_seq", Value: -1}},
			Options: options.Index().SetName(sessionCreatedAtIndex),
		},
	})
	if err != nil {
		return fmt.Errorf("create checkout session indexes: %w", database.Classify(err))
	}
	return nil
}

func (m *MongoSessionStore) List(ctx context.Context, limit, offset int) ([]models.CheckoutSession, error) {
	limit, offset = normalizePage(limit, offset)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_ts", Value: -1}, {Key: "insert_seq", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", database.Classify(err))
	}
	sessions := make([]models.CheckoutSession, 0, limit)
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", database.Classify(err))
	}
	return sessions, nil
}

func (m *MongoSessionStore) Get(ctx context.Context, shopSessionID string) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	err := m.coll.FindOne(ctx, bson.D{{Key: "shop_session_id", Value: shopSessionID}}).Decode(&s)
	if err != nil {
		return nil, wrapGet(database.Classify(err), "get checkout session", fmt.Sprintf("checkout session %q", shopSessionID))
	}
	return &s, nil
}

func (m *MongoSessionStore) Create(ctx context.Context, s models.CheckoutSession) (*models.CheckoutSession, error) {
	if err := PrepareNewSession(&s); err != nil {
		return nil, err
	}
	seq, err := m.nextInsertSeq(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := m.coll.InsertOne(ctx, sessionDocument{CheckoutSession: s, InsertSeq: seq}); err != nil {
		return nil, fmt.Errorf("create checkout session %q: %w", s.ShopSessionID, database.Classify(err))
	}
	return &s, nil
}

func (m *MongoSessionStore) Update(ctx context.Context, s models.CheckoutSession) (*models.CheckoutSession, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := stamp(&s.UpdatedTs); err != nil {
		return nil, err
	}

	res, err := m.coll.UpdateOne(ctx,
		bson.D{{Key: "shop_session_id", Value: s.ShopSessionID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "customer_id", Value: s.CustomerID},
			{Key: "order_id", Value: s.OrderID},
			{Key: "updated_ts", Value: s.UpdatedTs},
		}}})
	if err != nil {
		return nil, fmt.Errorf("update checkout session %q: %w", s.ShopSessionID, database.Classify(err))
	}
	if res.MatchedCount == 0 {
		return nil, notFound("checkout session %q not found", s.ShopSessionID)
	}
	return m.Get(ctx, s.ShopSessionID)
}

func (m *MongoSessionStore) Delete(ctx context.Context, shopSessionID string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.D{{Key: "shop_session_id", Value: shopSessionID}}); err != nil {
		return fmt.Errorf("delete checkout session %q: %w", shopSessionID, database.Classify(err))
	}
	return nil
}
