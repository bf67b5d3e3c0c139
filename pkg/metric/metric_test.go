package metric_test

import (
	"expvar"
	"strconv"
	"strings"
	"testing"

	"github.com/artistmail/webmail/pkg/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesPublishesTotalAndHistory(t *testing.T) {
	s := metric.NewSeries("testPublished")
	s.Add(2)
	s.Add(3)
	assert.Equal(t, int64(5), s.Value())
	assert.Equal(t, "5", expvar.Get("testPublishedTotal").String())

	metric.Sample()
	s.Add(1)
	metric.Sample()
	assert.Equal(t, "5,6", s.History())
	assert.Equal(t, `"5,6"`, expvar.Get("testPublishedHist").String())
}

func TestSeriesHistoryIsBounded(t *testing.T) {
	s := metric.NewSeries("testBounded")
	for i := 0; i < 70; i++ {
		s.Add(1)
		metric.Sample()
	}
	samples := strings.Split(s.History(), ",")
	require.Len(t, samples, 61)
	assert.Equal(t, "10", samples[0])
	assert.Equal(t, strconv.Itoa(70), samples[60])
}

func TestSnapshot(t *testing.T) {
	metric.NewSeries("testSnapshot").Add(7)

	snap := metric.Snapshot()
	assert.Equal(t, "7", snap["testSnapshot"])
	assert.Contains(t, snap, "remoteRequests")
	assert.Contains(t, snap, "monitorClients")
	assert.Contains(t, metric.Names(), "messagesSent")
}
