package api

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/TimurManjosov/konditional/codec"
	"github.com/TimurManjosov/konditional/engine"
	"github.com/TimurManjosov/konditional/internal/store"
	"github.com/TimurManjosov/konditional/internal/telemetry"
)

// maxSnapshotBytes bounds control-plane request bodies.
const maxSnapshotBytes = 4 << 20

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := codec.Encode(s.registry.Current())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", s.registry.Current().Tag())
	_, _ = w.Write(data)
}

// handlePutSnapshot decodes and installs a full snapshot. A failed
// decode returns 400 and leaves the installed snapshot untouched.
func (s *Server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "read body: "+err.Error())
		return
	}

	m, err := codec.Decode(body, s.ns, s.codecOpts)
	if err != nil {
		writeParseError(w, err)
		return
	}

	s.install(r, m.Snapshot(), body)
	writeJSON(w, http.StatusOK, map[string]any{
		"tag":     m.Snapshot().Tag(),
		"version": s.registry.Version(),
		"flags":   m.Snapshot().Len(),
	})
}

// handlePatchSnapshot applies a patch document to the current snapshot
// and installs the result.
func (s *Server) handlePatchSnapshot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "read body: "+err.Error())
		return
	}

	m, err := codec.ApplyPatch(s.registry.Current(), s.ns, body, s.codecOpts)
	if err != nil {
		writeParseError(w, err)
		return
	}

	encoded, err := codec.Encode(m.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	s.install(r, m.Snapshot(), encoded)
	writeJSON(w, http.StatusOK, map[string]any{
		"tag":     m.Snapshot().Tag(),
		"version": s.registry.Version(),
		"flags":   m.Snapshot().Len(),
	})
}

// install loads the snapshot into the registry and persists the
// document. Persistence failures are logged, not fatal: the registry
// already serves the new snapshot.
func (s *Server) install(r *http.Request, snap *engine.Snapshot, body []byte) {
	s.registry.Load(snap)
	telemetry.SnapshotLoads.WithLabelValues(s.registry.Namespace()).Inc()
	telemetry.SnapshotFlags.WithLabelValues(s.registry.Namespace()).Set(float64(snap.Len()))

	if s.store == nil {
		return
	}
	doc := store.Document{
		Namespace: s.registry.Namespace(),
		Body:      body,
		Version:   snap.Meta().Version,
		Tag:       snap.Tag(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(r.Context(), doc); err != nil {
		log.Printf("[api] failed to persist snapshot %s: %v", snap.Tag(), err)
	}
}

type rollbackRequest struct {
	Steps int `json:"steps"`
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	req := rollbackRequest{Steps: 1}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, err.Error())
			return
		}
	}
	if !s.registry.Rollback(req.Steps) {
		writeError(w, http.StatusConflict, ErrCodeBadRequest, "not enough history for rollback")
		return
	}
	telemetry.Rollbacks.WithLabelValues(s.registry.Namespace()).Inc()
	telemetry.SnapshotFlags.WithLabelValues(s.registry.Namespace()).Set(float64(s.registry.Current().Len()))
	writeJSON(w, http.StatusOK, map[string]any{
		"tag":     s.registry.Current().Tag(),
		"version": s.registry.Version(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.registry.History()
	entries := make([]map[string]any, 0, len(history))
	for _, snap := range history {
		entries = append(entries, map[string]any{
			"tag":     snap.Tag(),
			"flags":   snap.Len(),
			"version": snap.Meta().Version,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	s.registry.DisableAll()
	writeJSON(w, http.StatusOK, map[string]any{"disabled": true})
}

func (s *Server) handleUnkill(w http.ResponseWriter, r *http.Request) {
	s.registry.EnableAll()
	writeJSON(w, http.StatusOK, map[string]any{"disabled": false})
}
