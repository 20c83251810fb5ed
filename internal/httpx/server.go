package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/accounts"
	"github.com/bizconnect/marketplace/internal/catalog"
	"github.com/bizconnect/marketplace/internal/orders"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Deps are the services behind the API.
type Deps struct {
	Orders  *orders.Service
	Catalog *catalog.Service
	Inbox   Inbox
	Status  StatusReader
	Idem    Idempotency
	Proofs  ProofFiles
	Tokens  *accounts.Tokens
	Log     *zap.SugaredLogger
}

// NewAPI mounts every route under /api on a fresh router.
func NewAPI(d Deps) *chi.Mux {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	oh := &OrdersHandler{Orders: d.Orders, Status: d.Status, Idem: d.Idem, Log: d.Log}
	sh := &SellerHandler{Orders: d.Orders, Proofs: d.Proofs, Log: d.Log}
	ch := &CatalogHandler{Catalog: d.Catalog, Log: d.Log}
	nh := &NotificationsHandler{Inbox: d.Inbox, Log: d.Log}

	r := NewRouter()
	r.Route("/api", func(api chi.Router) {
		ch.RegisterPublic(api)
		oh.RegisterCallbacks(api)
		api.Group(func(api chi.Router) {
			api.Use(Authenticate(d.Tokens, d.Log))
			oh.Register(api)
			nh.Register(api)
			api.Route("/seller", func(seller chi.Router) {
				seller.Use(RequireRole(accounts.RoleSeller, accounts.RoleStaff))
				sh.Register(seller)
				ch.RegisterSeller(seller)
			})
		})
	})
	return r
}
