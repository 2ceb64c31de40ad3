package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yieldwallet/internal/middleware"
	"yieldwallet/pkg/logger"
)

// Routes collects what NewRouter mounts. RateLimiter and Idempotency are
// optional.
type Routes struct {
	Wallets     *WalletHandler
	Investments *InvestmentHandler
	Admin       *AdminHandler
	System      *SystemHandler

	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
	Idempotency *middleware.IdempotencyMiddleware
	CORSOrigins []string
	Logger      logger.Logger
}

func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.CORS(rt.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recovery(rt.Logger))
	r.Use(middleware.NewLoggingMiddleware(rt.Logger).Log)

	r.HandleFunc("/health", rt.System.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", rt.System.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(rt.Auth.Authenticate)
	if rt.RateLimiter != nil {
		api.Use(rt.RateLimiter.Limit)
	}

	idem := func(h http.HandlerFunc) http.Handler {
		if rt.Idempotency == nil {
			return h
		}
		return rt.Idempotency.Honour(h)
	}

	api.HandleFunc("/wallets", rt.Wallets.CreateWallet).Methods(http.MethodPost)
	api.HandleFunc("/wallets/me", rt.Wallets.GetMyWallet).Methods(http.MethodGet)
	api.HandleFunc("/wallets/me/transactions", rt.Wallets.ListMyTransactions).Methods(http.MethodGet)
	api.Handle("/wallets/me/transactions", idem(rt.Wallets.RecordTransaction)).Methods(http.MethodPost)

	api.HandleFunc("/investments/packages", rt.Investments.ListPackages).Methods(http.MethodGet)
	api.Handle("/investments/me/invest", idem(rt.Investments.Invest)).Methods(http.MethodPost)
	api.HandleFunc("/investments/me/investments", rt.Investments.ListMyInvestments).Methods(http.MethodGet)

	adm := api.PathPrefix("/admin").Subrouter()
	adm.Use(middleware.RequireAdmin)
	adm.Use(middleware.NewAuditMiddleware(rt.Logger).Audit)

	adm.HandleFunc("/wallets", rt.Admin.ListWallets).Methods(http.MethodGet)
	adm.HandleFunc("/wallets/{id}/status", rt.Admin.SetWalletStatus).Methods(http.MethodPut)
	adm.HandleFunc("/wallets/{id}/permissions/{kind}", rt.Admin.SetWalletPermission).Methods(http.MethodPut)
	adm.HandleFunc("/wallets/{id}/controls", rt.Admin.UpdateWalletControls).Methods(http.MethodPut)

	adm.HandleFunc("/transactions", rt.Admin.ListTransactions).Methods(http.MethodGet)
	adm.Handle("/transactions", idem(rt.Admin.RecordTransaction)).Methods(http.MethodPost)
	adm.HandleFunc("/transactions/{id}/approve", rt.Admin.ApproveTransaction).Methods(http.MethodPost)
	adm.HandleFunc("/transactions/{id}/reject", rt.Admin.RejectTransaction).Methods(http.MethodPost)
	adm.HandleFunc("/transactions/{id}/pend", rt.Admin.PendTransaction).Methods(http.MethodPost)

	adm.HandleFunc("/investment-packages", rt.Admin.ListPackages).Methods(http.MethodGet)
	adm.HandleFunc("/investment-packages", rt.Admin.CreatePackage).Methods(http.MethodPost)
	adm.HandleFunc("/investment-packages/{id}", rt.Admin.UpdatePackage).Methods(http.MethodPut)

	adm.HandleFunc("/investments", rt.Admin.ListInvestments).Methods(http.MethodGet)
	adm.HandleFunc("/investments/{id}", rt.Admin.UpdateInvestment).Methods(http.MethodPut)
	adm.HandleFunc("/investments/{id}/mature", rt.Admin.MatureInvestment).Methods(http.MethodPost)

	// preflight; the CORS middleware writes the response
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
