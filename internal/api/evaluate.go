package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/TimurManjosov/konditional/feature"
	"github.com/TimurManjosov/konditional/rollout"
)

// evaluateRequest is the body of POST /v1/evaluate.
type evaluateRequest struct {
	Context evaluateContext `json:"context"`
	// Keys optionally restricts evaluation to these feature IDs.
	Keys []string `json:"keys,omitempty"`
}

type evaluateContext struct {
	Locale     string              `json:"locale,omitempty"`
	Platform   string              `json:"platform,omitempty"`
	AppVersion string              `json:"appVersion,omitempty"`
	StableID   string              `json:"stableId,omitempty"`
	Axes       map[string][]string `json:"axes,omitempty"`
	Attributes map[string]any      `json:"attributes,omitempty"`
}

type evaluateResult struct {
	Key      string `json:"key"`
	Value    any    `json:"value"`
	Decision string `json:"decision"`
	Bucket   *int   `json:"bucket,omitempty"`
}

type evaluateResponse struct {
	Flags       []evaluateResult `json:"flags"`
	Tag         string           `json:"tag"`
	Version     uint64           `json:"version"`
	EvaluatedAt time.Time        `json:"evaluatedAt"`
}

// handleEvaluate evaluates all (or the requested) flags against the
// supplied context, reading every flag from one pinned snapshot.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "invalid request body: "+err.Error())
		return
	}

	ctx, err := buildContext(req.Context)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	handle := s.registry.Snapshot()
	snap := handle.Snapshot()

	ids := snap.Features()
	if len(req.Keys) > 0 {
		ids = ids[:0:0]
		for _, key := range req.Keys {
			id := feature.ID(key)
			if _, ok := snap.Flag(id); ok {
				ids = append(ids, id)
			}
			// Unknown keys are silently ignored.
		}
	}

	results := make([]evaluateResult, 0, len(ids))
	disabled := s.registry.Disabled()
	for _, id := range ids {
		flag, _ := snap.Flag(id)
		res := evaluateResult{Key: string(id)}
		if disabled {
			res.Value = flag.Default()
			res.Decision = "REGISTRY_DISABLED"
		} else {
			value, trace := flag.Evaluate(ctx)
			res.Value = value
			res.Decision = string(trace.Decision)
			if trace.Bucket != rollout.NoBucket {
				bucket := trace.Bucket
				res.Bucket = &bucket
			}
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, evaluateResponse{
		Flags:       results,
		Tag:         snap.Tag(),
		Version:     handle.Version(),
		EvaluatedAt: time.Now().UTC(),
	})
}

func buildContext(in evaluateContext) (*feature.Context, error) {
	ctx := &feature.Context{
		Locale:     in.Locale,
		Platform:   in.Platform,
		Attributes: in.Attributes,
	}
	if in.AppVersion != "" {
		v, err := feature.ParseVersion(in.AppVersion)
		if err != nil {
			return nil, err
		}
		ctx.AppVersion = v
	}
	if in.StableID != "" {
		id, err := feature.ParseHexID(in.StableID)
		if err != nil {
			return nil, err
		}
		ctx.StableID = id
	}
	if len(in.Axes) > 0 {
		ctx.Axes = feature.AxisValues(in.Axes)
	}
	return ctx, nil
}

type flagSummary struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	IsActive bool   `json:"isActive"`
	Rules    int    `json:"rules"`
	Salt     string `json:"salt"`
}

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Current()
	out := make([]flagSummary, 0, snap.Len())
	for _, flag := range snap.Flags() {
		out = append(out, flagSummary{
			Key:      string(flag.Feature()),
			Kind:     string(flag.Kind()),
			IsActive: flag.Active(),
			Rules:    len(flag.Values()),
			Salt:     flag.Salt(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"flags": out,
		"tag":   snap.Tag(),
	})
}
