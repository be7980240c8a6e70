package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var browseTemplates embed.FS

// BrowseLimit caps the number of books rendered on the browse page.
const BrowseLimit = MaxSearchLimit

type browsePage struct {
	Title string
	Query string
	Books []Book
	Book  Book
	PK    string
}

// MustParseBrowsePages parses the embedded html pages. It panics on a
// malformed template since they are part of the binary.
func MustParseBrowsePages() *template.Template {
	funcMap := template.FuncMap{
		"price": func(p float64) string { return fmt.Sprintf("%.2f", p) },
		"date":  func(t time.Time) string { return t.UTC().Format("02 Jan 2006 15:04 MST") },
	}
	return template.Must(template.New("browse").Funcs(funcMap).ParseFS(browseTemplates, "templates/*.html"))
}

// BrowseBooks renders the books whose title contains the `q` form value.
func (api *APIHandler) BrowseBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := NormalizeQuery(r.FormValue("q"))
	books, err := api.bookService.Search(context.WithoutCancel(r.Context()), SearchQuery{
		Query:    q,
		Limit:    BrowseLimit,
		MaxPrice: DefaultSearchMaxPrice,
	})
	if err != nil {
		api.sendServiceError(w, r, "browse", "", err)
		return
	}
	api.renderPage(w, r, "index.html", browsePage{Title: "Books", Query: q, Books: books})
}

// BrowseBook renders the detail page of a book or a not found page.
// Both answer 200 since they are regular pages for a reader.
func (api *APIHandler) BrowseBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pk := ps.ByName("pk")
	book, err := api.bookService.GetOne(context.WithoutCancel(r.Context()), pk)
	switch {
	case errors.Is(err, ErrBookNotFound):
		api.renderPage(w, r, "notfound.html", browsePage{Title: "Not found", PK: pk})
	case err != nil:
		api.sendServiceError(w, r, "browse", pk, err)
	default:
		api.renderPage(w, r, "detail.html", browsePage{Title: book.Title, Book: book})
	}
}

func (api *APIHandler) renderPage(w http.ResponseWriter, r *http.Request, name string, data browsePage) {
	var buf strings.Builder
	if err := api.pages.ExecuteTemplate(&buf, name, data); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to render page", zap.String("page", name), zap.Error(err))
		api.sendError(w, r, http.StatusInternalServerError, "failed to render the page", EmptyData)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(buf.String())); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send page", zap.String("page", name), zap.Error(err))
	}
}

// isBrowseDetailPath reports whether the request targets a single
// segment path such as `/{pk}` which has no registered route.
func isBrowseDetailPath(r *http.Request) (string, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return "", false
	}
	segment := strings.TrimPrefix(r.URL.Path, "/")
	if segment == "" || strings.Contains(segment, "/") {
		return "", false
	}
	return segment, true
}
