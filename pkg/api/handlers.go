package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

const batchConcurrency = 8

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

// decisionRequest keeps criticality as text so an omitted value means NORMAL.
type decisionRequest struct {
	Workload    string `json:"workload"`
	Region      string `json:"region"`
	Criticality string `json:"criticality"`
}

func (d decisionRequest) toCore() (core.Request, error) {
	crit, err := core.ParseCriticality(d.Criticality)
	if err != nil {
		return core.Request{}, err
	}
	req := core.Request{Workload: d.Workload, Region: d.Region, Criticality: crit}
	return req, req.Validate()
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	var body decisionRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	req, err := body.toCore()
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	d := h.engine.Decide(r.Context(), req.Workload, req.Region, req.Criticality)
	writeSuccess(w, http.StatusOK, d)
}

type batchRequest struct {
	Workloads []decisionRequest `json:"workloads"`
}

func (h *Handler) decideBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if len(req.Workloads) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "workloads cannot be empty")
		return
	}
	if h.MaxBatch > 0 && len(req.Workloads) > h.MaxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE",
			fmt.Sprintf("at most %d workloads per batch", h.MaxBatch))
		return
	}
	reqs := make([]core.Request, len(req.Workloads))
	for i, body := range req.Workloads {
		wl, err := body.toCore()
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("workloads[%d]: %v", i, err))
			return
		}
		reqs[i] = wl
	}

	out := make([]core.SchedulingDecision, len(reqs))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(batchConcurrency)
	for i, wl := range reqs {
		i, wl := i, wl
		g.Go(func() error {
			out[i] = h.engine.Decide(ctx, wl.Workload, wl.Region, wl.Criticality)
			return nil
		})
	}
	_ = g.Wait()
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) fairness(w http.ResponseWriter, r *http.Request) {
	counts, err := h.engine.Fairness(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("reading selection history")
		writeError(w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "selection history unavailable")
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"counts": counts,
		"total":  total,
	})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}
