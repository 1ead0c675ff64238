// Package plugins adapts Kubernetes objects to scheduling decisions.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	v1 "k8s.io/api/core/v1"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

const (
	AnnotationPrefix        = "carbon.g-uva.io/"
	AnnotationCriticality   = AnnotationPrefix + "criticality"
	AnnotationDecisionID    = AnnotationPrefix + "decision-id"
	AnnotationStrategy      = AnnotationPrefix + "strategy"
	AnnotationTargetRegion  = AnnotationPrefix + "target-region"
	AnnotationScheduledTime = AnnotationPrefix + "scheduled-time"
	AnnotationSavings       = AnnotationPrefix + "savings-percent"
	AnnotationError         = AnnotationPrefix + "error"
)

var ErrNoRegion = errors.New("no region for pod")

// Decider is the part of the engine the adapter needs.
type Decider interface {
	Decide(ctx context.Context, workload, region string, crit core.Criticality) core.SchedulingDecision
}

// RequestFromPod builds a decision request for pod. The region comes from the
// node's topology label, falling back to the pod's node selector.
func RequestFromPod(pod *v1.Pod, node *v1.Node) (core.Request, error) {
	if pod == nil {
		return core.Request{}, errors.New("nil pod")
	}
	crit, err := core.ParseCriticality(pod.Annotations[AnnotationCriticality])
	if err != nil {
		return core.Request{}, fmt.Errorf("pod %s/%s: %w", pod.Namespace, pod.Name, err)
	}
	region := ""
	if node != nil {
		region = node.Labels[v1.LabelTopologyRegion]
	}
	if region == "" {
		region = pod.Spec.NodeSelector[v1.LabelTopologyRegion]
	}
	if region == "" {
		return core.Request{}, fmt.Errorf("pod %s/%s: %w", pod.Namespace, pod.Name, ErrNoRegion)
	}
	return core.Request{
		Workload:    workloadName(pod),
		Region:      region,
		Criticality: crit,
		SubmitTime:  pod.CreationTimestamp.Time,
	}, nil
}

func workloadName(pod *v1.Pod) string {
	if pod.Namespace == "" {
		return pod.Name
	}
	return pod.Namespace + "/" + pod.Name
}

// Annotate returns a copy of pod carrying d. The input pod is not modified.
func Annotate(pod *v1.Pod, d core.SchedulingDecision) *v1.Pod {
	out := pod.DeepCopy()
	if out.Annotations == nil {
		out.Annotations = map[string]string{}
	}
	out.Annotations[AnnotationDecisionID] = d.ID
	out.Annotations[AnnotationStrategy] = string(d.Strategy)
	out.Annotations[AnnotationTargetRegion] = d.TargetRegion
	out.Annotations[AnnotationSavings] = strconv.FormatFloat(d.SavingsPercent, 'f', 2, 64)
	if d.ScheduledTime != nil {
		out.Annotations[AnnotationScheduledTime] = d.ScheduledTime.UTC().Format(time.RFC3339)
	} else {
		delete(out.Annotations, AnnotationScheduledTime)
	}
	if d.Error != "" {
		out.Annotations[AnnotationError] = d.Error
	} else {
		delete(out.Annotations, AnnotationError)
	}
	return out
}

// Relocate pins the pod to the decision's target region when it moved.
func Relocate(pod *v1.Pod, d core.SchedulingDecision) {
	if d.Strategy != core.SpaceShift && d.Strategy != core.Hybrid {
		return
	}
	if pod.Spec.NodeSelector == nil {
		pod.Spec.NodeSelector = map[string]string{}
	}
	pod.Spec.NodeSelector[v1.LabelTopologyRegion] = d.TargetRegion
}

// PodAdvisor decides for pods and writes the outcome back as annotations.
type PodAdvisor struct {
	Engine Decider
	Log    zerolog.Logger
}

func (a *PodAdvisor) Advise(ctx context.Context, pod *v1.Pod, node *v1.Node) (*v1.Pod, core.SchedulingDecision, error) {
	req, err := RequestFromPod(pod, node)
	if err != nil {
		return nil, core.SchedulingDecision{}, err
	}
	d := a.Engine.Decide(ctx, req.Workload, req.Region, req.Criticality)
	out := Annotate(pod, d)
	Relocate(out, d)
	a.Log.Info().
		Str("pod", req.Workload).
		Str("strategy", string(d.Strategy)).
		Str("target", d.TargetRegion).
		Msg("pod advised")
	return out, d, nil
}
