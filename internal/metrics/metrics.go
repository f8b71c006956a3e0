package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Checkout metrics
	CheckoutsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parking_checkouts_active",
			Help: "Checkouts currently open",
		},
	)

	CheckoutsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parking_checkouts_opened_total",
			Help: "Total checkouts opened; remounting an open checkout does not count",
		},
	)

	// Estimator metrics
	EstimateTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parking_estimate_ticks_total",
			Help: "Live estimate recomputations",
		},
	)

	RateFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_rate_fetch_errors_total",
			Help: "Rate lookups that failed and fell back to a zero rate",
		},
		[]string{"vehicle_type"},
	)

	// Payment metrics
	PaymentSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_payment_submissions_total",
			Help: "Payment submissions by outcome",
		},
		[]string{"method", "outcome"},
	)

	PaymentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parking_payment_duration_seconds",
			Help:    "Backend payment call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"outcome"},
	)

	PaymentsIgnored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_payment_submissions_ignored_total",
			Help: "Submissions refused before reaching the backend",
		},
		[]string{"reason"},
	)

	// Integration metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_events_published_total",
			Help: "Events published to the payment events queue",
		},
		[]string{"event_type", "result"},
	)

	BookingEventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_booking_events_consumed_total",
			Help: "Booking events read from the queue",
		},
		[]string{"event_type", "result"},
	)

	BarrierCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_barrier_commands_total",
			Help: "Exit barrier commands sent after payment",
		},
		[]string{"result"},
	)

	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parking_websocket_clients",
			Help: "Connected websocket clients",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CheckoutsActive,
		CheckoutsOpened,
		EstimateTicks,
		RateFetchErrors,
		PaymentSubmissions,
		PaymentDuration,
		PaymentsIgnored,
		EventsPublished,
		BookingEventsConsumed,
		BarrierCommands,
		WebSocketClients,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}

// Handler exposes the registry for tests and embedding.
func Handler() http.Handler {
	return promhttp.Handler()
}
