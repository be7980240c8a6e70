package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Status provides basics details about the application to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	resp := StatusResponse{
		RequestID: requestID,
		Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
		Message:   "Hello. Book catalog api is available. Enjoy :)",
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send status response", zap.Error(err))
	}
}

// sendError writes the error envelope and logs a failure to do so.
func (api *APIHandler) sendError(w http.ResponseWriter, r *http.Request, status int, message string, data interface{}) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	errResp := NewAPIError(requestID, status, message, data)
	if err := WriteErrorResponse(r.Context(), w, errResp); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send error response", zap.Error(err))
	}
}

// sendValidationError answers 422 with the offending fields.
func (api *APIHandler) sendValidationError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	api.GetLoggerFromContext(r.Context()).Info("invalid request", zap.String("operation", operation), zap.Error(err))
	api.metrics.ObserveBookOperation(operation, "invalid")
	var verr *ValidationError
	if errors.As(err, &verr) {
		api.sendError(w, r, http.StatusUnprocessableEntity, "invalid request", verr.Details)
		return
	}
	api.sendError(w, r, http.StatusUnprocessableEntity, "invalid request", []FieldError{{Field: "body", Message: err.Error()}})
}

// sendServiceError maps a service failure to not found or to an opaque server fault.
func (api *APIHandler) sendServiceError(w http.ResponseWriter, r *http.Request, operation, pk string, err error) {
	logger := api.GetLoggerFromContext(r.Context())
	if errors.Is(err, ErrBookNotFound) {
		logger.Info("book does not exist", zap.String("operation", operation), zap.String("book.pk", pk))
		api.metrics.ObserveBookOperation(operation, "not_found")
		api.sendError(w, r, http.StatusNotFound, "book does not exist", EmptyData)
		return
	}
	logger.Error("failed to process book operation", zap.String("operation", operation), zap.String("book.pk", pk), zap.Error(err))
	api.metrics.ObserveBookOperation(operation, "failed")
	api.sendError(w, r, http.StatusInternalServerError, "failed to process the request", EmptyData)
}

func (api *APIHandler) sendSuccess(w http.ResponseWriter, r *http.Request, operation string, status int, data interface{}) {
	api.metrics.ObserveBookOperation(operation, "succeeded")
	if err := WriteJSON(w, status, data); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send response", zap.String("operation", operation), zap.Error(err))
	}
}

// CreateBook godoc
//
//	@Summary	Create a book
//	@Tags		books
//	@Accept		json
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		book	body		BookPayload	true	"book to create"
//	@Success	201		{object}	BookPK
//	@Failure	401		{object}	APIError
//	@Failure	422		{object}	APIError
//	@Failure	500		{object}	APIError
//	@Router		/api/books/create [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payload, err := api.validator.DecodeBookPayload(r)
	if err != nil {
		api.sendValidationError(w, r, "create", err)
		return
	}

	book, err := api.bookService.Create(context.WithoutCancel(r.Context()), payload.Fields())
	if err != nil {
		api.sendServiceError(w, r, "create", "", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to create book", zap.String("book.pk", book.PK))
	api.sendSuccess(w, r, "create", http.StatusCreated, BookPK{PK: book.PK})
}

// SearchBooks godoc
//
//	@Summary	Search books by title and maximum price
//	@Tags		books
//	@Produce	json
//	@Param		q			query		string	false	"case-insensitive title substring"
//	@Param		limit		query		int		false	"maximum number of books (0,50]"	default(10)
//	@Param		max_price	query		number	false	"maximum price (0,5000000]"			default(5000000)
//	@Success	200			{array}		Book
//	@Failure	422			{object}	APIError
//	@Failure	500			{object}	APIError
//	@Router		/api/books [get]
func (api *APIHandler) SearchBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	params, err := api.validator.ParseSearchParams(r.URL.Query())
	if err != nil {
		api.sendValidationError(w, r, "search", err)
		return
	}

	books, err := api.bookService.Search(context.WithoutCancel(r.Context()), params.SearchQuery())
	if err != nil {
		api.sendServiceError(w, r, "search", "", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to search books", zap.Int("books.count", len(books)))
	api.sendSuccess(w, r, "search", http.StatusOK, books)
}

// GetOneBook godoc
//
//	@Summary	Get a book by its pk
//	@Tags		books
//	@Produce	json
//	@Param		pk	path		string	true	"book pk"
//	@Success	200	{object}	Book
//	@Failure	404	{object}	APIError
//	@Failure	500	{object}	APIError
//	@Router		/api/books/{pk} [get]
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pk := ps.ByName("pk")
	book, err := api.bookService.GetOne(context.WithoutCancel(r.Context()), pk)
	if err != nil {
		api.sendServiceError(w, r, "get", pk, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to get book", zap.String("book.pk", pk))
	api.sendSuccess(w, r, "get", http.StatusOK, book)
}

// PatchBookImage godoc
//
//	@Summary	Change the image of a book
//	@Tags		books
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		pk		path		string	true	"book pk"
//	@Param		image	query		string	true	"new image"
//	@Success	200		{object}	BookPK
//	@Failure	401		{object}	APIError
//	@Failure	404		{object}	APIError
//	@Failure	422		{object}	APIError
//	@Failure	500		{object}	APIError
//	@Router		/api/books/{pk} [patch]
func (api *APIHandler) PatchBookImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pk := ps.ByName("pk")
	image, err := ParseImageParam(r.URL.Query())
	if err != nil {
		api.sendValidationError(w, r, "patch", err)
		return
	}

	resp, err := api.bookService.PatchImage(context.WithoutCancel(r.Context()), pk, image)
	if err != nil {
		api.sendServiceError(w, r, "patch", pk, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to patch book image", zap.String("book.pk", pk))
	api.sendSuccess(w, r, "patch", http.StatusOK, resp)
}

// ReplaceBook godoc
//
//	@Summary	Replace the editable fields of a book
//	@Tags		books
//	@Accept		json
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		pk		path		string		true	"book pk"
//	@Param		book	body		BookPayload	true	"new book fields"
//	@Success	200		{object}	Book
//	@Failure	401		{object}	APIError
//	@Failure	404		{object}	APIError
//	@Failure	422		{object}	APIError
//	@Failure	500		{object}	APIError
//	@Router		/api/books/{pk} [put]
func (api *APIHandler) ReplaceBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pk := ps.ByName("pk")
	payload, err := api.validator.DecodeBookPayload(r)
	if err != nil {
		api.sendValidationError(w, r, "replace", err)
		return
	}

	book, err := api.bookService.Replace(context.WithoutCancel(r.Context()), pk, payload.Fields())
	if err != nil {
		api.sendServiceError(w, r, "replace", pk, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to replace book", zap.String("book.pk", pk))
	api.sendSuccess(w, r, "replace", http.StatusOK, book)
}

// DeleteBook godoc
//
//	@Summary	Delete a book
//	@Description	Deleting an unknown pk succeeds as well.
//	@Tags		books
//	@Security	ApiKeyAuth
//	@Param		pk	path	string	true	"book pk"
//	@Success	204
//	@Failure	401	{object}	APIError
//	@Failure	500	{object}	APIError
//	@Router		/api/books/{pk} [delete]
func (api *APIHandler) DeleteBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pk := ps.ByName("pk")
	if err := api.bookService.Delete(context.WithoutCancel(r.Context()), pk); err != nil {
		api.sendServiceError(w, r, "delete", pk, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to delete book", zap.String("book.pk", pk))
	api.metrics.ObserveBookOperation("delete", "succeeded")
	w.WriteHeader(http.StatusNoContent)
}
