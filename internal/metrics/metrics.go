package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/liujianglc/flexible/internal/crawler"
	"github.com/liujianglc/flexible/internal/queue"
)

// Namespace prefixes every metric name.
const Namespace = "flexible"

// Collector holds the crawl metrics. Counters are fed by crawler events;
// pool and queue gauges are read from the crawler and store at scrape time.
//
// Design decision: Gauges are GaugeFuncs over Crawler.Stats instead of
// values updated by listeners, so a scrape always sees the pool as it is
// and listeners stay cheap on the worker goroutines.
type Collector struct {
	// Documents counts documents by response status code.
	Documents *prometheus.CounterVec

	// Bytes counts body bytes of documents.
	Bytes prometheus.Counter

	// Navigated counts discovered locations accepted by Navigate.
	Navigated prometheus.Counter

	// Errors counts error events by ErrorKind.
	Errors *prometheus.CounterVec

	// Lifecycle counts paused, resumed and complete events.
	Lifecycle *prometheus.CounterVec
}

// New registers the crawl metrics for c with reg and subscribes to c's
// events. It panics if the metrics are already registered with reg, so use
// one registry per crawler.
func New(reg prometheus.Registerer, c *crawler.Crawler) *Collector {
	factory := promauto.With(reg)

	m := &Collector{
		Documents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_total",
			Help:      "Documents that passed the middleware, by response status code",
		}, []string{"status_code"}),
		Bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "document_bytes_total",
			Help:      "Body bytes of the documents that passed the middleware",
		}),
		Navigated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "navigated_total",
			Help:      "Discovered locations accepted into the queue store",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Errors emitted by the crawler, by kind",
		}, []string{"kind"}),
		Lifecycle: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lifecycle_events_total",
			Help:      "Pause, resume and complete events",
		}, []string{"event"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "active_tasks",
		Help:      "Tasks currently holding a worker slot",
	}, func() float64 { return float64(c.Stats().Active) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "pending_tasks",
		Help:      "Items staged in the worker pool waiting for a slot",
	}, func() float64 { return float64(c.Stats().Pending) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "state",
		Help:      "Crawler state: 0 running, 1 paused, 2 aborted, 3 completed",
	}, func() float64 { return float64(c.State()) })

	c.On(crawler.EventDocument, func(ev crawler.Event) {
		if ev.Result == nil {
			return
		}
		m.Documents.WithLabelValues(strconv.Itoa(ev.Result.Response.StatusCode)).Inc()
		m.Bytes.Add(float64(len(ev.Result.Body)))
	})
	c.On(crawler.EventNavigated, func(crawler.Event) {
		m.Navigated.Inc()
	})
	c.On(crawler.EventError, func(ev crawler.Event) {
		m.Errors.WithLabelValues(crawler.ErrorKind(ev.Err)).Inc()
	})
	for _, kind := range []crawler.EventKind{crawler.EventPaused, crawler.EventResumed, crawler.EventComplete} {
		c.On(kind, func(ev crawler.Event) {
			m.Lifecycle.WithLabelValues(ev.Kind.String()).Inc()
		})
	}

	return m
}

// queueCollector reports the item counts of a queue store per status.
type queueCollector struct {
	counter queue.Counter
	timeout time.Duration
	logger  *slog.Logger
	desc    *prometheus.Desc
}

// RegisterQueue registers a collector that reads the item counts of store at
// scrape time. Scrapes that cannot reach the store report nothing.
func RegisterQueue(reg prometheus.Registerer, store queue.Counter, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	return reg.Register(&queueCollector{
		counter: store,
		timeout: 5 * time.Second,
		logger:  logger,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "queue", "items"),
			"Items in the queue store, by status",
			[]string{"status"}, nil,
		),
	})
}

func (q *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- q.desc
}

func (q *queueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	st, err := q.counter.Stats(ctx)
	if err != nil {
		q.logger.Warn("failed to read queue stats", slog.Any("error", err))
		return
	}

	counts := map[queue.Status]int{
		queue.StatusPending: st.Pending,
		queue.StatusActive:  st.Active,
		queue.StatusEnded:   st.Ended,
	}
	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(q.desc, prometheus.GaugeValue, float64(n), string(status))
	}
	ch <- prometheus.MustNewConstMetric(q.desc, prometheus.GaugeValue, float64(st.Failed), "failed")
}
