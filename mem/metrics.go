package mem

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attachTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecscope_attach_total",
		Help: "Total number of successful attaches to the target process",
	})

	readTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecscope_read_process_memory_total",
		Help: "Total number of remote memory reads",
	})

	readFaultTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vecscope_read_fault_total",
		Help: "Remote memory reads that failed, by fault kind",
	}, []string{"kind"})
)
