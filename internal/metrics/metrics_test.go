package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSubmissionsCounter(t *testing.T) {
	before := testutil.ToFloat64(Submissions.WithLabelValues(OutcomeDuplicate))
	Submissions.WithLabelValues(OutcomeDuplicate).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Submissions.WithLabelValues(OutcomeDuplicate)))
}

func TestObserveStore(t *testing.T) {
	ObserveStore("test_op", time.Now())
	assert.GreaterOrEqual(t, testutil.CollectAndCount(StoreDuration), 1)
}

func TestNilServerIsNoop(t *testing.T) {
	s := NewServer("")
	assert.Nil(t, s)
	s.Start()
	assert.NoError(t, s.Shutdown(context.Background()))
}
