package metrics

import (
	"io"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

var (
	outboundRequestsTotal *prometheus.CounterVec
	registerOnce          sync.Once
)

// Register initializes Prometheus metrics on the default registry.
func Register() {
	registerOnce.Do(func() {
		outboundRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pollclient",
			Name:      "outbound_requests_total",
			Help:      "Total API requests issued by the polling client.",
		}, []string{"method", "endpoint", "status"})
	})
}

// IncRequest increments the outbound_requests_total counter. The endpoint
// label is the normalized path (ids stripped), status 0 means the request
// never produced a response.
func IncRequest(method, endpoint string, status int) {
	if outboundRequestsTotal == nil {
		return
	}
	outboundRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// Dump writes every registered metric family to w in the text exposition
// format. The CLI dumps the registry after a command when diagnostics are
// requested; long-lived processes expose the registry over HTTP instead.
func Dump(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
