// Package mongostore is the document-database variant of the storage
// backend. Snapshots keep a dual shape: a single "latest" document
// updated in place for fast reads, plus an append-only history pruned
// to the retention count. The three-step upsert/append/prune sequence
// is not wrapped in a transaction; the data is advisory.
package mongostore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ekoc/coinfolio/internal/logger"
	"github.com/ekoc/coinfolio/internal/models"
	"github.com/ekoc/coinfolio/internal/store"
)

const isoFormat = "2006-01-02T15:04:05.000Z07:00"

// Options configures the Mongo-backed store.
type Options struct {
	URI                 string
	Database            string
	SnapshotCollection  string
	FavoritesCollection string
	PriceCacheCol       string
	HistoryLimit        int
}

// Store persists snapshots, favorites, and the price cache in MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	opts   Options
}

type favoritesDoc struct {
	ID        string            `bson:"_id"`
	Favorites []models.Favorite `bson:"favorites"`
}

type priceCacheDoc struct {
	ID     string             `bson:"_id"`
	TS     string             `bson:"ts"`
	Prices map[string]float64 `bson:"prices"`
}

type latestDoc struct {
	ID       string          `bson:"_id"`
	Snapshot models.Snapshot `bson:"snapshot"`
}

// DatabaseFromURI infers the database name from the connection string
// path, defaulting to "app".
func DatabaseFromURI(uri string) string {
	rest := uri
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		rest = ""
	}
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		rest = rest[:idx]
	}
	if rest == "" {
		return "app"
	}
	return rest
}

// New connects to MongoDB and returns the store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("mongo URI cannot be empty")
	}
	if opts.Database == "" {
		opts.Database = DatabaseFromURI(opts.URI)
	}
	if opts.SnapshotCollection == "" {
		opts.SnapshotCollection = "crypto"
	}
	if opts.FavoritesCollection == "" {
		opts.FavoritesCollection = "favorites"
	}
	if opts.PriceCacheCol == "" {
		opts.PriceCacheCol = "price_cache"
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Info("Connected to mongo database %s", opts.Database)
	return &Store{
		client: client,
		db:     client.Database(opts.Database),
		opts:   opts,
	}, nil
}

func (s *Store) snapshots() *mongo.Collection {
	return s.db.Collection(s.opts.SnapshotCollection)
}

func (s *Store) latest() *mongo.Collection {
	return s.db.Collection(s.opts.SnapshotCollection + "_latest")
}

// SaveSnapshot upserts the latest record, appends to history, then
// prunes history beyond the retention count, oldest first.
func (s *Store) SaveSnapshot(ctx context.Context, req models.SnapshotRequest) (models.Snapshot, error) {
	cleaned := store.NormalizeHoldings(req.Holdings)
	if len(cleaned) == 0 {
		return models.Snapshot{}, store.ErrEmptyHoldings
	}

	snap := models.Snapshot{
		TS:       time.Now().UTC().Format(isoFormat),
		Holdings: cleaned,
		TotalUSD: req.TotalUSD,
	}

	_, err := s.latest().UpdateOne(ctx,
		bson.M{"_id": "latest"},
		bson.M{"$set": latestDoc{ID: "latest", Snapshot: snap}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to upsert latest snapshot: %w", err)
	}

	if _, err := s.snapshots().InsertOne(ctx, snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := s.prune(ctx); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) prune(ctx context.Context) error {
	findOpts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "ts", Value: -1}}).
		SetSkip(int64(s.opts.HistoryLimit))

	cursor, err := s.snapshots().Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return fmt.Errorf("failed to list stale snapshots: %w", err)
	}

	var stale []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		return fmt.Errorf("failed to decode stale snapshots: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	ids := make([]primitive.ObjectID, 0, len(stale))
	for _, doc := range stale {
		ids = append(ids, doc.ID)
	}

	if _, err := s.snapshots().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

// Snapshots returns the retained history, newest first.
func (s *Store) Snapshots(ctx context.Context) ([]models.Snapshot, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: -1}}).
		SetLimit(int64(s.opts.HistoryLimit))

	cursor, err := s.snapshots().Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots := []models.Snapshot{}
	if err := cursor.All(ctx, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to decode snapshots: %w", err)
	}
	return snapshots, nil
}

// LatestSnapshot returns the in-place latest record, falling back to
// the head of history, nil when neither exists.
func (s *Store) LatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var doc latestDoc
	err := s.latest().FindOne(ctx, bson.M{"_id": "latest"}).Decode(&doc)
	if err == nil {
		return &doc.Snapshot, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}

	snapshots, err := s.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// Favorites returns the stored favorites list.
func (s *Store) Favorites(ctx context.Context) ([]models.Favorite, error) {
	var doc favoritesDoc
	err := s.db.Collection(s.opts.FavoritesCollection).
		FindOne(ctx, bson.M{"_id": "default"}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return []models.Favorite{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read favorites: %w", err)
	}
	if doc.Favorites == nil {
		return []models.Favorite{}, nil
	}
	return doc.Favorites, nil
}

// SaveFavorites overwrites the single favorites list; an empty
// normalized list is rejected.
func (s *Store) SaveFavorites(ctx context.Context, favorites []models.Favorite) error {
	cleaned := store.NormalizeFavorites(favorites)
	if len(cleaned) == 0 {
		return store.ErrEmptyFavorites
	}

	_, err := s.db.Collection(s.opts.FavoritesCollection).UpdateOne(ctx,
		bson.M{"_id": "default"},
		bson.M{"$set": bson.M{"favorites": cleaned}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save favorites: %w", err)
	}
	return nil
}

// PriceCache returns the advisory price cache document.
func (s *Store) PriceCache(ctx context.Context) (models.PriceCacheDoc, error) {
	var doc priceCacheDoc
	err := s.db.Collection(s.opts.PriceCacheCol).
		FindOne(ctx, bson.M{"_id": "latest"}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return models.PriceCacheDoc{Prices: map[string]float64{}}, nil
	}
	if err != nil {
		return models.PriceCacheDoc{}, fmt.Errorf("failed to read price cache: %w", err)
	}
	if doc.Prices == nil {
		doc.Prices = map[string]float64{}
	}
	return models.PriceCacheDoc{TS: doc.TS, Prices: doc.Prices}, nil
}

// SavePriceCache overwrites the advisory price cache.
func (s *Store) SavePriceCache(ctx context.Context, prices map[string]float64) error {
	doc := priceCacheDoc{
		ID:     "latest",
		TS:     time.Now().UTC().Format(isoFormat),
		Prices: prices,
	}

	_, err := s.db.Collection(s.opts.PriceCacheCol).UpdateOne(ctx,
		bson.M{"_id": "latest"},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save price cache: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
