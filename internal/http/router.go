package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// NewRouter wires every route onto a chi router wrapped in otelhttp instrumentation.
func NewRouter(svc CartService, requestTimeout time.Duration, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cartHandler := NewCartHandler(svc, requestTimeout)
	checkoutHandler := NewCheckoutHandler(svc, requestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Put("/store", cartHandler.SetActiveStore)
			r.Put("/items/{product_id}", cartHandler.SetItem)
			r.Patch("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Post("/promo", cartHandler.ApplyPromo)
			r.Delete("/promo", cartHandler.RemovePromo)
		})
		r.Post("/checkout", checkoutHandler.Checkout)
	})

	return otelhttp.NewHandler(r, "selfcheckout")
}
