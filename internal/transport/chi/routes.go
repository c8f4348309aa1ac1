package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface is the HTTP surface of the search API.
type ServerInterface interface {
	// (POST /search)
	Search(w http.ResponseWriter, r *http.Request)
	// (POST /collections/{collection}/search)
	SearchCollection(w http.ResponseWriter, r *http.Request, collection string)
	// (GET /collections)
	ListCollections(w http.ResponseWriter, r *http.Request, params ListCollectionsParams)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// ServerOptions configures HandlerWithOptions.
type ServerOptions struct {
	BaseRouter       chi.Router
	Middlewares      []func(http.Handler) http.Handler
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions mounts si on a chi router. Parameters are bound with the
// OpenAPI styled-parameter rules before the handler runs.
func HandlerWithOptions(si ServerInterface, options ServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	errHandler := options.ErrorHandlerFunc
	if errHandler == nil {
		errHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		}
	}
	w := &wrapper{handler: si, middlewares: options.Middlewares, errorHandler: errHandler}

	r.Post("/search", w.Search)
	r.Post("/collections/{collection}/search", w.SearchCollection)
	r.Get("/collections", w.ListCollections)
	r.Get("/health", w.HealthCheck)
	r.Get("/metrics", w.Metrics)
	return r
}

type wrapper struct {
	handler      ServerInterface
	middlewares  []func(http.Handler) http.Handler
	errorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

func (w *wrapper) serve(rw http.ResponseWriter, r *http.Request, h http.Handler) {
	for _, mw := range w.middlewares {
		h = mw(h)
	}
	h.ServeHTTP(rw, r)
}

func (w *wrapper) Search(rw http.ResponseWriter, r *http.Request) {
	w.serve(rw, r, http.HandlerFunc(w.handler.Search))
}

func (w *wrapper) SearchCollection(rw http.ResponseWriter, r *http.Request) {
	var collection string
	err := runtime.BindStyledParameterWithOptions("simple", "collection", chi.URLParam(r, "collection"),
		&collection, runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		w.errorHandler(rw, r, &InvalidParamFormatError{ParamName: "collection", Err: err})
		return
	}

	w.serve(rw, r, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.handler.SearchCollection(rw, r, collection)
	}))
}

func (w *wrapper) ListCollections(rw http.ResponseWriter, r *http.Request) {
	var params ListCollectionsParams

	if err := runtime.BindQueryParameter("form", true, false, "cursor", r.URL.Query(), &params.Cursor); err != nil {
		w.errorHandler(rw, r, &InvalidParamFormatError{ParamName: "cursor", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		w.errorHandler(rw, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	w.serve(rw, r, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.handler.ListCollections(rw, r, params)
	}))
}

func (w *wrapper) HealthCheck(rw http.ResponseWriter, r *http.Request) {
	w.serve(rw, r, http.HandlerFunc(w.handler.HealthCheck))
}

func (w *wrapper) Metrics(rw http.ResponseWriter, r *http.Request) {
	w.serve(rw, r, http.HandlerFunc(w.handler.Metrics))
}

// InvalidParamFormatError reports a parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return "Invalid format for parameter " + e.ParamName + ": " + e.Err.Error()
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }
