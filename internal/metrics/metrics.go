package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "market_submissions_total", Help: "Proving requests submitted to the market"},
		[]string{"provider"},
	)
	FulfillmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "market_fulfillments_total", Help: "Fulfillments received from the market"},
		[]string{"provider"},
	)
	RecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "journal_recoveries_total", Help: "Journal recovery attempts by outcome"},
		[]string{"outcome"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Recovered trading signals by action"},
		[]string{"action"},
	)
	ContractCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "contract_calls_total", Help: "Ledger contract calls by method and status"},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(SubmissionsTotal, FulfillmentsTotal, RecoveriesTotal, SignalsTotal, ContractCallsTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
