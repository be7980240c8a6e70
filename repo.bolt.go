package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

type boltBookStorage struct {
	logger *zap.Logger
	client *bolt.DB
	bucket []byte
}

// GetBoltDBClient setup the database and the bucket then provides a ready to use client.
func GetBoltDBClient(config *BoltDBConfig) (*bolt.DB, error) {
	db, err := bolt.Open(config.FilePath, 0o600, &bolt.Options{Timeout: config.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, errB := tx.CreateBucketIfNotExists([]byte(config.BucketName)); errB != nil {
			return fmt.Errorf("failed to create %s bucket: %v", config.BucketName, errB)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// NewBoltBookStorage provides an instance of bolt-based book storage.
func NewBoltBookStorage(logger *zap.Logger, config *BoltDBConfig, client *bolt.DB) BookStorage {
	return &boltBookStorage{
		logger: logger,
		client: client,
		bucket: []byte(config.BucketName),
	}
}

// Create inserts a new book record into boltdb store.
func (bs *boltBookStorage) Create(_ context.Context, book Book) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return bs.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bs.bucket).Put([]byte(book.PK), bookBytes)
	})
}

// GetByPK retrieves a book record based on its pk from boltdb store.
func (bs *boltBookStorage) GetByPK(_ context.Context, pk string) (Book, error) {
	var book Book
	// initialize a readable transaction.
	tx, err := bs.client.Begin(false)
	if err != nil {
		return book, err
	}
	defer tx.Rollback()

	result := tx.Bucket(bs.bucket).Get([]byte(pk))
	if result == nil {
		return book, ErrBookNotFound
	}
	err = json.Unmarshal(result, &book)
	return book, err
}

// Search walks the whole bucket and filters the books in process.
func (bs *boltBookStorage) Search(_ context.Context, query SearchQuery) ([]Book, error) {
	tx, err := bs.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	books := []Book{}
	c := tx.Bucket(bs.bucket).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var book Book
		if err = json.Unmarshal(v, &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return FilterBooks(books, query), nil
}

// PatchImage sets the image of the book. A missing pk is a no-op.
func (bs *boltBookStorage) PatchImage(_ context.Context, pk string, image string) error {
	return bs.update(pk, func(book *Book) {
		book.Image = image
	})
}

// ReplaceEditableFields overwrites the editable fields of the book. A missing pk is a no-op.
func (bs *boltBookStorage) ReplaceEditableFields(_ context.Context, pk string, fields BookFields) error {
	return bs.update(pk, func(book *Book) {
		book.BookFields = fields
	})
}

// update applies mutate to the stored book inside a single read-write transaction.
func (bs *boltBookStorage) update(pk string, mutate func(*Book)) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bs.bucket)
		result := b.Get([]byte(pk))
		if result == nil {
			return nil
		}
		var book Book
		if err := json.Unmarshal(result, &book); err != nil {
			return err
		}
		mutate(&book)
		bookBytes, err := json.Marshal(book)
		if err != nil {
			return err
		}
		return b.Put([]byte(pk), bookBytes)
	})
}

// Delete removes a book record based on its pk from boltdb store.
func (bs *boltBookStorage) Delete(_ context.Context, pk string) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bs.bucket).Delete([]byte(pk))
	})
}
