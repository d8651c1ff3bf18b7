// myxl-gateway/pkg/metrics/metrics.go
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
    // label "step" dipakai untuk tiap tahap orkestrasi (OTP, PAYMENT_METHODS, SETTLE_QRIS, ...)
    GatewayRequestsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "myxl",
            Name:      "requests_total",
            Help:      "Total request gateway per service dan tahap",
        },
        []string{"service", "status", "step"},
    )

    GatewayRequestDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "myxl",
            Name:      "request_duration_seconds",
            Help:      "Durasi proses request per service",
            // upstream telco bisa lambat, bucket sampai 10s
            Buckets: []float64{
                0.01, 0.02, 0.05, 0.1, 0.2, 0.3,
                0.5, 0.8, 1.2, 2, 3, 5, 10,
            },
        },
        []string{"service", "status"},
    )

    PurchasesTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "myxl",
            Name:      "purchases_total",
            Help:      "Transaksi pembelian paket yang berhasil dibuat",
        },
        []string{"method"},
    )

    LedgerEventsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "myxl",
            Name:      "ledger_events_total",
            Help:      "Event pembelian yang diproses worker ledger",
        },
        []string{"status"}, // STORED / DUPLICATE / INVALID / FAILED
    )
)

func init() {
    prometheus.MustRegister(GatewayRequestsTotal, GatewayRequestDuration, PurchasesTotal, LedgerEventsTotal)
}

// Helper biar rapi dipanggil dari handler
func IncRequest(service, status, step string) {
    GatewayRequestsTotal.WithLabelValues(service, status, step).Inc()
}
func ObserveDuration(service, status string, seconds float64) {
    GatewayRequestDuration.WithLabelValues(service, status).Observe(seconds)
}
func IncPurchase(method string) {
    PurchasesTotal.WithLabelValues(method).Inc()
}
func IncLedger(status string) {
    LedgerEventsTotal.WithLabelValues(status).Inc()
}
