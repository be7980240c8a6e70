package main

import (
	"context"
	"errors"
	"time"
)

// ErrBookNotFound is returned by the storage when no book matches a given pk.
// It is an expected outcome, not a storage fault.
var ErrBookNotFound = errors.New("book not found")

// BookFields groups the editable fields of a book.
type BookFields struct {
	Title       string  `json:"title" bson:"title"`
	Description string  `json:"description" bson:"description"`
	Price       float64 `json:"price" bson:"price"`
	Image       string  `json:"image" bson:"image"`
}

// Book represents a book entity as persisted and returned by the api.
type Book struct {
	PK         string `json:"pk" bson:"pk"`
	BookFields `bson:",inline"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// BookPK is the response sent on book creation and image patching.
type BookPK struct {
	PK string `json:"pk"`
}

// BookPayload is the create and full update request body. Price and Image
// are pointers so that an absent field can be told apart from a zero value.
type BookPayload struct {
	Title       string   `json:"title" validate:"required,min=1,max=100"`
	Description string   `json:"description" validate:"max=15000"`
	Price       *float64 `json:"price" validate:"required,gt=0"`
	Image       *string  `json:"image" validate:"required"`
}

// Fields returns the editable fields carried by a validated payload.
func (p BookPayload) Fields() BookFields {
	fields := BookFields{Title: p.Title, Description: p.Description}
	if p.Price != nil {
		fields.Price = *p.Price
	}
	if p.Image != nil {
		fields.Image = *p.Image
	}
	return fields
}

// SearchQuery holds the filters applied by the storage on search.
type SearchQuery struct {
	Query    string
	Limit    int
	MaxPrice float64
}

// BookStorage defines possible operations on book entity. Mutations on a
// missing pk are silent no-ops: existence is checked by the caller.
type BookStorage interface {
	Create(ctx context.Context, book Book) error
	GetByPK(ctx context.Context, pk string) (Book, error)
	Search(ctx context.Context, query SearchQuery) ([]Book, error)
	PatchImage(ctx context.Context, pk string, image string) error
	ReplaceEditableFields(ctx context.Context, pk string, fields BookFields) error
	Delete(ctx context.Context, pk string) error
}
