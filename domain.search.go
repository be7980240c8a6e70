package main

import (
	"sort"
	"strings"
)

const (
	DefaultSearchLimit    = 10
	MaxSearchLimit        = 50
	DefaultSearchMaxPrice = 5_000_000
)

// NormalizeQuery trims the search text the same way for every backend.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(q)
}

// MatchBook reports whether a book satisfies the search filters.
func MatchBook(book Book, query SearchQuery) bool {
	if book.Price > query.MaxPrice {
		return false
	}
	q := NormalizeQuery(query.Query)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(book.Title), strings.ToLower(q))
}

// SortBooks orders books by price descending then by pk.
func SortBooks(books []Book) {
	sort.SliceStable(books, func(i, j int) bool {
		if books[i].Price != books[j].Price {
			return books[i].Price > books[j].Price
		}
		return books[i].PK < books[j].PK
	})
}

// FilterBooks applies the search filters, ordering and limit in process.
// It is used by backends which cannot run the query server side.
func FilterBooks(books []Book, query SearchQuery) []Book {
	matched := make([]Book, 0, len(books))
	for _, book := range books {
		if MatchBook(book, query) {
			matched = append(matched, book)
		}
	}
	SortBooks(matched)
	if query.Limit >= 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched
}
