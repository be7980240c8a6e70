package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HBooks is the redis hash holding every book document keyed by pk.
const HBooks string = "books"

type redisBookStorage struct {
	logger *zap.Logger
	client *redis.Client
}

// NewRedisBookStorage provides an instance of redis-based book storage.
func NewRedisBookStorage(logger *zap.Logger, client *redis.Client) BookStorage {
	return &redisBookStorage{
		logger: logger,
		client: client,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Host, config.Port),
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolSize:     config.PoolSize,
		PoolTimeout:  config.PoolTimeout,
		Password:     config.Password,
		Username:     config.Username,
		DB:           config.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// Create inserts a new book record.
func (rs *redisBookStorage) Create(ctx context.Context, book Book) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return rs.client.HSet(ctx, HBooks, book.PK, bookBytes).Err()
}

// GetByPK retrieves a book record based on its pk.
func (rs *redisBookStorage) GetByPK(ctx context.Context, pk string) (Book, error) {
	var book Book
	bookJSONString, err := rs.client.HGet(ctx, HBooks, pk).Result()
	if errors.Is(err, redis.Nil) {
		return book, ErrBookNotFound
	}
	if err != nil {
		return book, err
	}
	err = json.Unmarshal([]byte(bookJSONString), &book)
	return book, err
}

// Search loads all books and filters them in process since
// a hash offers no secondary index on title or price.
func (rs *redisBookStorage) Search(ctx context.Context, query SearchQuery) ([]Book, error) {
	values, err := rs.client.HVals(ctx, HBooks).Result()
	if err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(values))
	for _, bookJSONString := range values {
		var book Book
		if err = json.Unmarshal([]byte(bookJSONString), &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return FilterBooks(books, query), nil
}

// PatchImage sets the image of the book. A missing pk is a no-op.
func (rs *redisBookStorage) PatchImage(ctx context.Context, pk string, image string) error {
	return rs.update(ctx, pk, func(book *Book) {
		book.Image = image
	})
}

// ReplaceEditableFields overwrites the editable fields of the book. A missing pk is a no-op.
func (rs *redisBookStorage) ReplaceEditableFields(ctx context.Context, pk string, fields BookFields) error {
	return rs.update(ctx, pk, func(book *Book) {
		book.BookFields = fields
	})
}

// update reads the book then writes it back. Concurrent writers on the
// same book are not serialized: the last write wins. A missing pk is a no-op.
func (rs *redisBookStorage) update(ctx context.Context, pk string, mutate func(*Book)) error {
	bookJSONString, err := rs.client.HGet(ctx, HBooks, pk).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	var book Book
	if err = json.Unmarshal([]byte(bookJSONString), &book); err != nil {
		return err
	}
	mutate(&book)
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return rs.client.HSet(ctx, HBooks, pk, bookBytes).Err()
}

// Delete removes a book record based on its pk. A missing pk is a no-op.
func (rs *redisBookStorage) Delete(ctx context.Context, pk string) error {
	return rs.client.HDel(ctx, HBooks, pk).Err()
}
