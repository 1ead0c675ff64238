package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

func TestObserveDecision(t *testing.T) {
	before := testutil.ToFloat64(decisionCounter.WithLabelValues("TIME_SHIFT", "eu-north"))

	ObserveDecision(core.SchedulingDecision{Strategy: core.TimeShift, TargetRegion: "eu-north", SavingsPercent: 42}, 3*time.Millisecond)
	ObserveDecision(core.SchedulingDecision{Strategy: core.TimeShift, TargetRegion: "eu-north", SavingsPercent: 12}, time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(decisionCounter.WithLabelValues("TIME_SHIFT", "eu-north")))
}

func TestFetchFailed(t *testing.T) {
	before := testutil.ToFloat64(fetchFailures.WithLabelValues("electricitymaps"))
	FetchFailed("electricitymaps", errors.New("timeout"))
	assert.Equal(t, before+1, testutil.ToFloat64(fetchFailures.WithLabelValues("electricitymaps")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveDecision(core.SchedulingDecision{Strategy: core.RunNow, TargetRegion: "eu-west"}, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "carbonsched_decisions_total"))
	assert.True(t, strings.Contains(body, "carbonsched_decision_seconds"))
}
