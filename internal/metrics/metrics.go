package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"niceguy/internal/logging"
)

var (
	Searches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "niceguy_searches_total",
		Help: "Total search requests issued",
	})
	SearchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "niceguy_search_errors_total",
		Help: "Total failed search requests",
	})
	Recipients = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "niceguy_recipients_total",
		Help: "Total recipients collected by the search phase",
	})
	Replies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "niceguy_replies_total",
		Help: "Total replies emitted, by output mode",
	}, []string{"mode"})
	ReplyErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "niceguy_reply_errors_total",
		Help: "Total failed reply submissions, by output mode",
	}, []string{"mode"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "niceguy_command_runs_total",
		Help: "Total CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "niceguy_command_errors_total",
		Help: "Total CLI command failures",
	}, []string{"command"})
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "niceguy_run_duration_seconds",
		Help:    "Duration of a full search and reply run",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(Searches, SearchErrors, Recipients, Replies, ReplyErrors, CommandRuns, CommandErrors, RunDuration)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logging.Error("metrics_server_error", map[string]any{"addr": addr, "error": err.Error()})
		}
	}()
}

// WriteTextfile dumps the default registry in text format to path,
// for pickup by a node exporter textfile collector. Empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// ObserveRunDuration records a run duration.
func ObserveRunDuration(start time.Time) {
	RunDuration.Observe(time.Since(start).Seconds())
}

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
func IncReply(mode string)       { Replies.WithLabelValues(mode).Inc() }
func IncReplyError(mode string)  { ReplyErrors.WithLabelValues(mode).Inc() }
