// Package metric publishes counters through expvar, each with a rolling per-minute history.
package metric

import (
	"container/list"
	"expvar"
	"sort"
	"strings"
	"sync"
	"time"
)

// historyLen is one hour of samples plus one; consumers chart the deltas between samples.
const historyLen = 61

var (
	// RemoteRequests counts requests made to the remote functions.
	RemoteRequests = NewSeries("remoteRequests")

	// RemoteErrors counts remote requests that failed in transport or with a non-2xx status.
	RemoteErrors = NewSeries("remoteErrors")

	// MessagesSent counts messages accepted by the send function.
	MessagesSent = NewSeries("messagesSent")

	// MonitorClients counts connected monitor sockets.
	MonitorClients = expvar.NewInt("monitorClients")
)

var (
	registryMu sync.Mutex
	registry   []*Series
)

func init() {
	go sampler(time.Minute)
}

// Series is a counter published as <name>Total, with its recent samples published as
// <name>Hist, a comma separated list.
type Series struct {
	name  string
	total *expvar.Int
	hist  *expvar.String

	mu      sync.Mutex
	samples *list.List
}

// NewSeries publishes a new counter.  Like expvar.Publish, it panics if the name is taken.
func NewSeries(name string) *Series {
	s := &Series{
		name:    name,
		total:   expvar.NewInt(name + "Total"),
		hist:    expvar.NewString(name + "Hist"),
		samples: list.New(),
	}

	registryMu.Lock()
	registry = append(registry, s)
	registryMu.Unlock()

	return s
}

// Add increments the counter.
func (s *Series) Add(delta int64) {
	s.total.Add(delta)
}

// Value returns the current count.
func (s *Series) Value() int64 {
	return s.total.Value()
}

// History returns the recorded samples, oldest first.
func (s *Series) History() string {
	return s.hist.Value()
}

// sample records the current count in the history.
func (s *Series) sample() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples.PushBack(s.total.String())
	for s.samples.Len() > historyLen {
		s.samples.Remove(s.samples.Front())
	}

	parts := make([]string, 0, s.samples.Len())
	for e := s.samples.Front(); e != nil; e = e.Next() {
		parts = append(parts, e.Value.(string))
	}
	s.hist.Set(strings.Join(parts, ","))
}

// Sample records one history sample for every series.  It is called once per minute.
func Sample() {
	registryMu.Lock()
	series := append([]*Series(nil), registry...)
	registryMu.Unlock()

	for _, s := range series {
		s.sample()
	}
}

// Snapshot returns the current totals keyed by series name, for status reporting.
func Snapshot() map[string]string {
	registryMu.Lock()
	defer registryMu.Unlock()

	out := make(map[string]string, len(registry)+1)
	for _, s := range registry {
		out[s.name] = s.total.String()
	}
	out["monitorClients"] = MonitorClients.String()
	return out
}

// Names returns the registered series names, sorted.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := make([]string, 0, len(registry))
	for _, s := range registry {
		names = append(names, s.name)
	}
	sort.Strings(names)
	return names
}

func sampler(interval time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
		Sample()
	}
}
