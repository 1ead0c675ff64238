package plugins

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

var created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func pod(annotations map[string]string) *v1.Pod {
	return &v1.Pod{ObjectMeta: metav1.ObjectMeta{
		Name:              "etl-7f9",
		Namespace:         "batch",
		Annotations:       annotations,
		CreationTimestamp: metav1.NewTime(created),
	}}
}

func node(region string) *v1.Node {
	return &v1.Node{ObjectMeta: metav1.ObjectMeta{
		Name:   "n1",
		Labels: map[string]string{v1.LabelTopologyRegion: region},
	}}
}

func TestRequestFromPod(t *testing.T) {
	req, err := RequestFromPod(pod(nil), node("eu-west"))
	require.NoError(t, err)
	assert.Equal(t, "batch/etl-7f9", req.Workload)
	assert.Equal(t, "eu-west", req.Region)
	assert.Equal(t, core.Normal, req.Criticality)
	assert.Equal(t, created, req.SubmitTime)

	req, err = RequestFromPod(pod(map[string]string{AnnotationCriticality: "low"}), node("eu-west"))
	require.NoError(t, err)
	assert.Equal(t, core.Low, req.Criticality)
}

func TestRequestFromPod_NodeSelectorFallback(t *testing.T) {
	p := pod(nil)
	p.Spec.NodeSelector = map[string]string{v1.LabelTopologyRegion: "eu-north"}
	req, err := RequestFromPod(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "eu-north", req.Region)

	_, err = RequestFromPod(pod(nil), &v1.Node{})
	assert.ErrorIs(t, err, ErrNoRegion)
}

func TestRequestFromPod_BadCriticality(t *testing.T) {
	_, err := RequestFromPod(pod(map[string]string{AnnotationCriticality: "urgent"}), node("eu-west"))
	assert.ErrorContains(t, err, "batch/etl-7f9")
}

func TestAnnotate(t *testing.T) {
	at := created.Add(3 * time.Hour)
	in := pod(map[string]string{AnnotationError: "stale"})
	out := Annotate(in, core.SchedulingDecision{
		ID: "d-1", Strategy: core.TimeShift, TargetRegion: "eu-west", ScheduledTime: &at, SavingsPercent: 42.123,
	})

	assert.Equal(t, "TIME_SHIFT", out.Annotations[AnnotationStrategy])
	assert.Equal(t, "2024-03-01T15:00:00Z", out.Annotations[AnnotationScheduledTime])
	assert.Equal(t, "42.12", out.Annotations[AnnotationSavings])
	assert.Equal(t, "d-1", out.Annotations[AnnotationDecisionID])
	assert.NotContains(t, out.Annotations, AnnotationError)
	assert.Equal(t, "stale", in.Annotations[AnnotationError], "input untouched")
}

type stubDecider struct{ d core.SchedulingDecision }

func (s stubDecider) Decide(_ context.Context, workload, region string, crit core.Criticality) core.SchedulingDecision {
	d := s.d
	d.WorkloadName, d.CurrentRegion, d.Criticality = workload, region, crit
	return d
}

func TestPodAdvisor_SpaceShiftPinsRegion(t *testing.T) {
	a := &PodAdvisor{
		Engine: stubDecider{d: core.SchedulingDecision{Strategy: core.SpaceShift, TargetRegion: "eu-north"}},
		Log:    zerolog.Nop(),
	}
	out, d, err := a.Advise(context.Background(), pod(nil), node("eu-west"))
	require.NoError(t, err)
	assert.Equal(t, "batch/etl-7f9", d.WorkloadName)
	assert.Equal(t, "eu-north", out.Spec.NodeSelector[v1.LabelTopologyRegion])
	assert.Equal(t, "eu-north", out.Annotations[AnnotationTargetRegion])
}

func TestPodAdvisor_RunNowLeavesSelector(t *testing.T) {
	a := &PodAdvisor{Engine: stubDecider{d: core.SchedulingDecision{Strategy: core.RunNow, TargetRegion: "eu-west"}}}
	out, _, err := a.Advise(context.Background(), pod(nil), node("eu-west"))
	require.NoError(t, err)
	assert.Nil(t, out.Spec.NodeSelector)
}
