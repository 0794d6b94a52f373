package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/fluxionlabs/fluxion/flow"
	"github.com/fluxionlabs/fluxion/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type executeFlowRequest struct {
	FlowID string         `json:"flow_id"`
	Input  map[string]any `json:"input,omitempty"`
	Gas    uint64         `json:"gas,omitempty"`
}

func (s *Server) HandleCreateFlow(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "error reading request body")
		return
	}
	def, err := flow.Parse(data)
	if err != nil {
		logger.Error("error parsing flow definition", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.flows.Save(*def); err != nil {
		logger.Error("error saving flow definition", zap.String("flow", def.ID), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if warnings := flow.LintStructure(def); len(warnings) > 0 {
		respondWithJSON(w, http.StatusOK, map[string]any{"message": "created", "warnings": warnings})
		return
	}
	respondOK(w, "created")
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	def, err := s.flows.Get(id)
	if err != nil {
		logger.Info("flow does not exist", zap.String("flow", id))
		respondWithError(w, http.StatusNotFound, "flow does not exist")
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (s *Server) HandleExecuteFlow(w http.ResponseWriter, r *http.Request) {
	var req executeFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	defer r.Body.Close()
	if req.FlowID == "" {
		respondWithError(w, http.StatusBadRequest, "flow_id is required")
		return
	}
	result, err := s.engine.StartSession(req.FlowID, req.Input, req.Gas)
	if err != nil {
		logger.Error("error executing flow", zap.String("flow", req.FlowID), zap.Error(err))
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
