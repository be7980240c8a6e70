package main

import (
	"net/http"

	_ "github.com/jeamon/book-catalog/docs"
	"github.com/julienschmidt/httprouter"
	httpswagger "github.com/swaggo/http-swagger/v2"
)

// MiddlewareMap contains middlwares chain to use for public
// reads, gated book mutations and ops requests.
type MiddlewareMap struct {
	public    func(httprouter.Handle) httprouter.Handle
	protected func(httprouter.Handle) httprouter.Handle
	ops       func(httprouter.Handle) httprouter.Handle
}

// SetupRoutes injects book and ops related endpoints if required.
func (api *APIHandler) SetupRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	router.NotFound = api.NotFound(m)
	router.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header())
		w.WriteHeader(http.StatusNoContent)
	})
	api.SetupBookRoutes(router, m)
	if api.config.OpsEndpointsEnable {
		api.SetupOpsRoutes(router, m)
	}
	if api.config.SwaggerEnable {
		router.GET("/swagger/*any", m.public(api.OpsHandlerWrapper(httpswagger.WrapHandler)))
	}
	return router
}

// route registers a handler behind a middlewares chain and labels its
// metrics with the route pattern.
func (api *APIHandler) route(router *httprouter.Router, method, path string, chain func(httprouter.Handle) httprouter.Handle, h httprouter.Handle) {
	router.Handle(method, path, chain(api.MetricsMiddleware(path)(h)))
}
