package main

import (
	"encoding/hex"

	"github.com/gofrs/uuid"
)

var _ UIDHandler = (*IDsHandler)(nil) // ensure IDsHandler implements UIDHandler.

// UIDHandler is an interface for getting unique ids.
type UIDHandler interface {
	Generate(prefix string) string
	GeneratePK() string
}

// IDsHandler implements the UIDHandler interface.
type IDsHandler struct{}

// NewIDsHandler returns a ready to use IDsHandler.
func NewIDsHandler() *IDsHandler {
	return &IDsHandler{}
}

// Generate provides a random unique identifier prefixed for logs readability.
// It is used for request ids.
func (idh *IDsHandler) Generate(prefix string) string {
	return prefix + ":" + uuid.Must(uuid.NewV4()).String()
}

// GeneratePK provides a fresh book primary key: 128 random bits
// hex-encoded without dashes.
func (idh *IDsHandler) GeneratePK() string {
	id := uuid.Must(uuid.NewV4())
	return hex.EncodeToString(id.Bytes())
}
