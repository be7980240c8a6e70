package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// SetupBookRoutes injects book related the api endpoints. Mutations go
// through the protected chain which requires the api key.
func (api *APIHandler) SetupBookRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	api.route(router, http.MethodGet, "/", m.public, api.BrowseBooks)
	api.route(router, http.MethodGet, "/status", m.public, api.Status)

	api.route(router, http.MethodPost, "/api/books/create", m.protected, api.CreateBook)
	api.route(router, http.MethodGet, "/api/books", m.public, api.SearchBooks)
	api.route(router, http.MethodGet, "/api/books/:pk", m.public, api.GetOneBook)
	api.route(router, http.MethodPatch, "/api/books/:pk", m.protected, api.PatchBookImage)
	api.route(router, http.MethodPut, "/api/books/:pk", m.protected, api.ReplaceBook)
	api.route(router, http.MethodDelete, "/api/books/:pk", m.protected, api.DeleteBook)
	return router
}
