package obs

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BuildInfo describes the running binary and the backends it was wired with.
type BuildInfo struct {
	Version   string
	Commit    string
	Store     string // postgres | memory
	RateLimit string // memory | redis
}

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orgguard_build_info",
			Help: "orgguard build and wiring information; always 1.",
		},
		[]string{"version", "commit", "go_version", "store", "ratelimit"},
	)
)

// InitBuildInfo registers orgguard_build_info once and sets the series for info to 1.
func InitBuildInfo(info BuildInfo) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.Reset()
	buildInfo.WithLabelValues(orUnknown(info.Version), orUnknown(info.Commit), runtime.Version(), orUnknown(info.Store), orUnknown(info.RateLimit)).Set(1)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
