package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes why a single input field was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a request payload or its query
// parameters do not satisfy the expected constraints.
type ValidationError struct {
	Details []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+": "+d.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Details: []FieldError{{Field: field, Message: message}}}
}

// SearchParams are the query parameters accepted by the books listing.
type SearchParams struct {
	Query    string  `json:"q"`
	Limit    int     `json:"limit" validate:"gt=0,lte=50"`
	MaxPrice float64 `json:"max_price" validate:"gt=0,lte=5000000"`
}

// SearchQuery converts validated parameters into storage filters.
func (sp SearchParams) SearchQuery() SearchQuery {
	return SearchQuery{Query: sp.Query, Limit: sp.Limit, MaxPrice: sp.MaxPrice}
}

// BookValidator checks payloads against their struct tags.
type BookValidator struct {
	v *validator.Validate
}

// NewBookValidator returns a validator reporting fields by their json names.
func NewBookValidator() *BookValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &BookValidator{v: v}
}

// Validate validates the given struct and converts any failure into a *ValidationError.
func (bv *BookValidator) Validate(s any) error {
	err := bv.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	details := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		details[i] = FieldError{Field: fe.Field(), Message: ValidationErrorMessage(fe)}
	}
	return &ValidationError{Details: details}
}

// ValidationErrorMessage turns a validator failure into a readable message.
func ValidationErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return "is invalid"
	}
}

// DecodeBookPayload reads and validates the content of a book creation or update request.
func (bv *BookValidator) DecodeBookPayload(r *http.Request) (BookPayload, error) {
	var payload BookPayload
	if r.Body == nil {
		return payload, newValidationError("body", "request body is required")
	}

	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&payload)
	if err == nil && !errors.Is(dec.Decode(&struct{}{}), io.EOF) {
		// the body must hold a single json value.
		return payload, newValidationError("body", "malformed json")
	}
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return payload, newValidationError("body", "request body is required")
	case errors.As(err, &typeErr):
		return payload, newValidationError(typeErr.Field, "must be of type "+typeErr.Type.String())
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return payload, newValidationError("body", "malformed json")
	default:
		return payload, newValidationError("body", err.Error())
	}

	return payload, bv.Validate(payload)
}

// ParseSearchParams reads the listing query parameters, applies their
// defaults and rejects out of range values.
func (bv *BookValidator) ParseSearchParams(values url.Values) (SearchParams, error) {
	params := SearchParams{
		Query:    values.Get("q"),
		Limit:    DefaultSearchLimit,
		MaxPrice: DefaultSearchMaxPrice,
	}

	var details []FieldError
	if raw, ok := values["limit"]; ok {
		limit, err := strconv.Atoi(strings.TrimSpace(raw[0]))
		if err != nil {
			details = append(details, FieldError{Field: "limit", Message: "must be a valid integer"})
		} else {
			params.Limit = limit
		}
	}
	if raw, ok := values["max_price"]; ok {
		maxPrice, err := strconv.ParseFloat(strings.TrimSpace(raw[0]), 64)
		if err != nil {
			details = append(details, FieldError{Field: "max_price", Message: "must be a valid number"})
		} else {
			params.MaxPrice = maxPrice
		}
	}
	if len(details) > 0 {
		return params, &ValidationError{Details: details}
	}

	return params, bv.Validate(params)
}

// ParseImageParam reads the mandatory `image` query parameter. An empty value is allowed.
func ParseImageParam(values url.Values) (string, error) {
	raw, ok := values["image"]
	if !ok {
		return "", newValidationError("image", "field is required")
	}
	return raw[0], nil
}
