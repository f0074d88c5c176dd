package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	Procedures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uesim_procedures_total",
			Help: "Finished procedures by kind and result",
		},
		[]string{"procedure", "result"},
	)

	MmTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uesim_mm_transitions_total",
			Help: "Mobility management state transitions",
		},
		[]string{"from", "to"},
	)

	DroppedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uesim_dropped_messages_total",
			Help: "Inbound messages dropped without a handler",
		},
		[]string{"kind"},
	)

	TimerExpiries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uesim_timer_expiries_total",
			Help: "NAS timer expiries observed by the endpoint task",
		},
		[]string{"timer"},
	)

	CoreRegistrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uesim_core_registrations_total",
			Help: "Registrations handled by the simulated AMF by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(Procedures, MmTransitions, DroppedMessages, TimerExpiries, CoreRegistrations)
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, log *zap.SugaredLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Infof("starting prometheus metrics server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
