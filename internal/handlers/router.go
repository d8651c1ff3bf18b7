package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every route of the gateway. Request ids, access logs,
// metrics and CORS wrap the whole router so 404 and 405 answers are seen too.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logrus.WithField("service", serviceName)
	}

	r := mux.NewRouter()

	// metrics & health
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", HealthHandler(d)).Methods(http.MethodGet)

	// API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/api-key", SetAPIKeyHandler(d)).Methods(http.MethodPost)
	api.HandleFunc("/login/request-otp", RequestOTPHandler(d)).Methods(http.MethodPost)
	api.HandleFunc("/login/submit-otp", SubmitOTPHandler(d)).Methods(http.MethodPost)
	api.HandleFunc("/me", MeHandler(d)).Methods(http.MethodGet)
	api.HandleFunc("/packages/xut", PackagesXUTHandler(d)).Methods(http.MethodGet)
	api.HandleFunc("/package", PackageHandler(d)).Methods(http.MethodGet)
	api.HandleFunc("/purchase/qris", PurchaseQRISHandler(d)).Methods(http.MethodPost)
	api.HandleFunc("/purchase/ewallet", PurchaseEWalletHandler(d)).Methods(http.MethodPost)

	// pages
	r.HandleFunc("/", PageHandler(d, "index.html", "Beranda")).Methods(http.MethodGet)
	r.HandleFunc("/login", PageHandler(d, "login.html", "Login")).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", PageHandler(d, "dashboard.html", "Dashboard")).Methods(http.MethodGet)

	// static
	if d.StaticDir != "" {
		r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
	}

	return cors.AllowAll().Handler(requestIDMiddleware(metricsMiddleware(d.Log)(r)))
}
