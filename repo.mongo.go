package main

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type mongoBookStorage struct {
	logger     *zap.Logger
	collection *mongo.Collection
}

// GetMongoClient connects to the mongodb deployment and ensures it answers.
func GetMongoClient(ctx context.Context, config *MongoDBConfig) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(config.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	if config.ConnectTimeout > 0 {
		opts = opts.SetConnectTimeout(config.ConnectTimeout).SetServerSelectionTimeout(config.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %v", err)
	}

	// test connection.
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// NewMongoBookStorage provides an instance of mongodb-based book storage.
// It creates the unique index on the `pk` field if missing.
func NewMongoBookStorage(ctx context.Context, logger *zap.Logger, client *mongo.Client, config *MongoDBConfig) (BookStorage, error) {
	collection := client.Database(config.Database).Collection(config.Collection)
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pk", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("pk_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pk index: %v", err)
	}
	return &mongoBookStorage{
		logger:     logger,
		collection: collection,
	}, nil
}

// Create inserts a new book document.
func (ms *mongoBookStorage) Create(ctx context.Context, book Book) error {
	_, err := ms.collection.InsertOne(ctx, book)
	return err
}

// GetByPK retrieves a book document based on its pk.
func (ms *mongoBookStorage) GetByPK(ctx context.Context, pk string) (Book, error) {
	var book Book
	err := ms.collection.FindOne(ctx, bson.M{"pk": pk}).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Book{}, ErrBookNotFound
	}
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// Search runs the title and price filters on the server. The query
// is matched literally, regex metacharacters carry no meaning.
func (ms *mongoBookStorage) Search(ctx context.Context, query SearchQuery) ([]Book, error) {
	filter := bson.M{"price": bson.M{"$lte": query.MaxPrice}}
	if q := NormalizeQuery(query.Query); q != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "price", Value: -1}, {Key: "pk", Value: 1}}).
		SetLimit(int64(query.Limit))

	cursor, err := ms.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	books := []Book{}
	if err = cursor.All(ctx, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// PatchImage sets the image of the book. A missing pk is a no-op.
func (ms *mongoBookStorage) PatchImage(ctx context.Context, pk string, image string) error {
	_, err := ms.collection.UpdateOne(ctx, bson.M{"pk": pk}, bson.M{"$set": bson.M{"image": image}})
	return err
}

// ReplaceEditableFields overwrites title, description, price and image
// of the book in a single atomic update. A missing pk is a no-op.
func (ms *mongoBookStorage) ReplaceEditableFields(ctx context.Context, pk string, fields BookFields) error {
	_, err := ms.collection.UpdateOne(ctx, bson.M{"pk": pk}, bson.M{"$set": fields})
	return err
}

// Delete removes the book document. A missing pk is a no-op.
func (ms *mongoBookStorage) Delete(ctx context.Context, pk string) error {
	_, err := ms.collection.DeleteOne(ctx, bson.M{"pk": pk})
	return err
}
