package cmds

import (
	"net"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"

	"github.com/vmdriver/vmdriver/pkg/logflags"
	"github.com/vmdriver/vmdriver/pkg/vm"
)

// metricsPath is the URL path for exposing metrics to Prometheus.
const metricsPath = "/metrics"

// serveMetrics starts serving the executor and process metrics on addr.
func serveMetrics(addr string, runID xid.ID, log logflags.Logger) (*http.Server, *vm.Metrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"run": runID.String()}, reg)
	metrics := vm.NewMetrics(wrapped)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "metrics listener")
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server")
		}
	}()
	log.Infof("serving metrics at http://%s%s", l.Addr(), metricsPath)
	return srv, metrics, nil
}
