// Package mongo stores customers as documents in the "customers"
// collection, keyed by a unique index on email.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("mongo")

const collectionName = "customers"

// Store implements port.CustomerStore. It does not implement
// port.Transactor; use TxStore on replica sets.
type Store struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// TxStore adds session transactions to Store.
type TxStore struct {
	*Store
	client *mongo.Client
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// New creates the store and ensures the unique email index exists.
func New(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*Store, error) {
	coll := db.Collection(collectionName)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "accountId", Value: 1}}},
		{Keys: bson.D{{Key: "reportees", Value: 1}}},
		{Keys: bson.D{{Key: "reportingTo", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return &Store{coll: coll, logger: logger}, nil
}

// NewTx creates a transactional store. The deployment must be a replica set.
func NewTx(ctx context.Context, client *mongo.Client, db *mongo.Database, logger *zap.Logger) (*TxStore, error) {
	s, err := New(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	return &TxStore{Store: s, client: client}, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Mongo.FindByEmail")
	defer span.End()
	span.SetAttributes(attribute.String("customer.email", email))

	var c domain.Customer
	err := s.coll.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: email}
	}
	if err != nil {
		return nil, fmt.Errorf("find customer %s: %w", email, err)
	}
	c.ApplyDefaults()
	return &c, nil
}

func (s *Store) FindMany(ctx context.Context, f domain.CustomerFilter) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Mongo.FindMany")
	defer span.End()

	if f.EmailIn != nil && len(f.EmailIn) == 0 {
		return []domain.Customer{}, nil
	}
	cur, err := s.coll.Find(ctx, filterDoc(f), options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find customers: %w", err)
	}
	out := make([]domain.Customer, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode customers: %w", err)
	}
	for i := range out {
		out[i].ApplyDefaults()
	}
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, nil
}

func (s *Store) Create(ctx context.Context, c *domain.Customer) error {
	ctx, span := tracer.Start(ctx, "Mongo.Create")
	defer span.End()

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	// An upsert that only inserts leaves an existing record untouched
	// without raising a write error, so a session transaction survives the
	// lost race. Concurrent inserts outside a session can still hit the
	// unique index.
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "email", Value: c.Email}},
		bson.D{{Key: "$setOnInsert", Value: c}},
		options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return &domain.ErrDuplicateKey{Key: c.Email}
	}
	if err != nil {
		return fmt.Errorf("insert customer %s: %w", c.Email, err)
	}
	if res.UpsertedCount == 0 {
		return &domain.ErrDuplicateKey{Key: c.Email}
	}
	return nil
}

func (s *Store) Save(ctx context.Context, c *domain.Customer) error {
	ctx, span := tracer.Start(ctx, "Mongo.Save")
	defer span.End()

	c.UpdatedAt = time.Now().UTC()
	res, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "email", Value: c.Email}}, c)
	if err != nil {
		return fmt.Errorf("replace customer %s: %w", c.Email, err)
	}
	if res.MatchedCount == 0 {
		return &domain.ErrNotFound{Resource: "customer", ID: c.Email}
	}
	return nil
}

func (s *Store) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Mongo.DeleteByEmail")
	defer span.End()

	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return 0, fmt.Errorf("delete customer %s: %w", email, err)
	}
	return res.DeletedCount, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, readpref.Primary())
}

// RunInTx runs fn inside a session transaction. The driver retries fn on
// transient transaction errors, so fn must be safe to repeat. A call made
// inside an open session joins it. Create of an existing email inside fn
// reports *domain.ErrDuplicateKey and the transaction stays open; two
// sessions racing to insert the same email surface as a write conflict,
// which the driver retries.
func (t *TxStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func filterDoc(f domain.CustomerFilter) bson.D {
	doc := bson.D{}
	if f.AccountID != "" {
		doc = append(doc, bson.E{Key: "accountId", Value: f.AccountID})
	}
	if f.ReporteesContains != "" {
		doc = append(doc, bson.E{Key: "reportees", Value: f.ReporteesContains})
	}
	if f.ReportingToContains != "" {
		doc = append(doc, bson.E{Key: "reportingTo", Value: f.ReportingToContains})
	}
	if f.EmailIn != nil {
		doc = append(doc, bson.E{Key: "email", Value: bson.D{{Key: "$in", Value: f.EmailIn}}})
	}
	return doc
}
