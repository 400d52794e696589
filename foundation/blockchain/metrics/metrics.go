// Package metrics constructs the blockchain metrics exposed to prometheus.
package metrics

import (
	"fmt"

	_ "github.com/dgraph-io/badger/v2/y"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every metric of the node.
const namespace = "edublock"

var (
	blocksMined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_mined_total",
		Help:      "number of blocks mined by this node",
	})

	blocksAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_appended_total",
		Help:      "number of blocks appended to the local chain",
	})

	chainReplacements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chain_replacements_total",
		Help:      "number of times the local chain was replaced by a peer chain",
	})

	rejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_total",
		Help:      "number of blocks and chains rejected by reason",
	}, []string{"reason"})

	chainLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chain_length",
		Help:      "number of blocks in the local chain including genesis",
	})

	mempoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mempool_size",
		Help:      "number of transactions waiting to be mined",
	})

	requests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "number of http requests handled",
	})

	errorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_errors_total",
		Help:      "number of http requests that returned an error",
	})

	panics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_panics_total",
		Help:      "number of http requests that panicked",
	})
)

// AddBlockMined increments the mined blocks.
func AddBlockMined() {
	blocksMined.Inc()
}

// AddBlockAppended increments the appended blocks.
func AddBlockAppended() {
	blocksAppended.Inc()
}

// AddChainReplaced increments the chain replacements.
func AddChainReplaced() {
	chainReplacements.Inc()
}

// AddRejected increments the rejections for the specified reason.
func AddRejected(reason string) {
	rejected.WithLabelValues(reason).Inc()
}

// SetChainLength records the length of the local chain.
func SetChainLength(length int) {
	chainLength.Set(float64(length))
}

// SetMempoolSize records the number of transactions in the mempool.
func SetMempoolSize(size int) {
	mempoolSize.Set(float64(size))
}

// AddRequests increments the request count.
func AddRequests() {
	requests.Inc()
}

// AddErrors increments the error count.
func AddErrors() {
	errorsTotal.Inc()
}

// AddPanics increments the panic count.
func AddPanics() {
	panics.Inc()
}

// RegisterBadger exposes the expvar metrics badger publishes.
func RegisterBadger() error {
	expvarCol := collectors.NewExpvarCollector(map[string]*prometheus.Desc{
		"badger_v2_disk_reads_total":  prometheus.NewDesc(namespace+"_badger_disk_reads_total", "cumulative number of reads", nil, nil),
		"badger_v2_disk_writes_total": prometheus.NewDesc(namespace+"_badger_disk_writes_total", "cumulative number of writes", nil, nil),
		"badger_v2_read_bytes":        prometheus.NewDesc(namespace+"_badger_read_bytes", "cumulative number of bytes read", nil, nil),
		"badger_v2_written_bytes":     prometheus.NewDesc(namespace+"_badger_written_bytes", "cumulative number of bytes written", nil, nil),
		"badger_v2_gets_total":        prometheus.NewDesc(namespace+"_badger_gets_total", "number of gets", nil, nil),
		"badger_v2_puts_total":        prometheus.NewDesc(namespace+"_badger_puts_total", "number of puts", nil, nil),
		"badger_v2_lsm_size_bytes":    prometheus.NewDesc(namespace+"_badger_lsm_size_bytes", "size of the LSM in bytes", []string{"path"}, nil),
		"badger_v2_vlog_size_bytes":   prometheus.NewDesc(namespace+"_badger_vlog_size_bytes", "size of the value log in bytes", []string{"path"}, nil),
	})

	if err := prometheus.Register(expvarCol); err != nil {
		return fmt.Errorf("failed to register badger metrics: %w", err)
	}

	return nil
}
