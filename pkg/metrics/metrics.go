package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================
// HTTP request metrics, Go runtime metrics, and the business metrics for the
// payment wizard and the chat hub.
// =============================================================================

var (
	registry = prometheus.NewRegistry()

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	paymentTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transactions_total",
			Help: "Total number of payment gateway transactions",
		},
		[]string{"service", "method", "status"},
	)

	paymentStepTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_step_transitions_total",
			Help: "Total number of payment wizard step transitions",
		},
		[]string{"service", "from", "to"},
	)

	chatMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages processed",
		},
		[]string{"service", "direction", "type"},
	)

	wsConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Number of open WebSocket connections",
		},
		[]string{"service"},
	)

	onlineUsers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "online_users",
			Help: "Number of users currently marked online",
		},
		[]string{"service"},
	)
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(httpRequestsTotal)
	registry.MustRegister(httpRequestDuration)
	registry.MustRegister(paymentTransactions)
	registry.MustRegister(paymentStepTransitions)
	registry.MustRegister(chatMessages)
	registry.MustRegister(wsConnections)
	registry.MustRegister(onlineUsers)
}

// Registry returns the prometheus registry
func Registry() *prometheus.Registry {
	return registry
}

// Handler returns a Fiber handler for the /metrics endpoint
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// Config holds metrics middleware configuration
type Config struct {
	ServiceName string
	SkipPaths   []string
}

// Middleware returns Fiber middleware that records HTTP metrics
func Middleware(cfg Config) fiber.Handler {
	skipPaths := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *fiber.Ctx) error {
		if skipPaths[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		method := c.Method()
		path := c.Route().Path

		httpRequestsTotal.WithLabelValues(cfg.ServiceName, method, path, status).Inc()
		httpRequestDuration.WithLabelValues(cfg.ServiceName, method, path).Observe(duration)

		return err
	}
}

// RecordPaymentTransaction records a gateway transaction outcome
func RecordPaymentTransaction(service, method, status string) {
	paymentTransactions.WithLabelValues(service, method, status).Inc()
}

// RecordPaymentStep records a wizard step transition
func RecordPaymentStep(service, from, to string) {
	paymentStepTransitions.WithLabelValues(service, from, to).Inc()
}

// RecordChatMessage records a processed chat message
func RecordChatMessage(service, direction, msgType string) {
	chatMessages.WithLabelValues(service, direction, msgType).Inc()
}

// SetWSConnections sets the number of open WebSocket connections
func SetWSConnections(service string, count int) {
	wsConnections.WithLabelValues(service).Set(float64(count))
}

// SetOnlineUsers sets the number of users marked online
func SetOnlineUsers(service string, count int) {
	onlineUsers.WithLabelValues(service).Set(float64(count))
}
