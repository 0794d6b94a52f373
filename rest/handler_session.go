package rest

import (
	"encoding/json"
	"net/http"

	"github.com/fluxionlabs/fluxion/logger"
	"github.com/fluxionlabs/fluxion/model"
	"github.com/fluxionlabs/fluxion/resource"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type resumeSessionRequest struct {
	Answer any `json:"answer"`
}

func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	ec, ok := s.sessions.Get(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "session does not exist")
		return
	}
	respondWithJSON(w, http.StatusOK, ec)
}

func (s *Server) HandleResumeSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	var req resumeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	defer r.Body.Close()
	result, err := s.engine.ResumeSession(id, req.Answer)
	if err != nil {
		logger.Error("error resuming session", zap.String("session", id), zap.Error(err))
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) HandleRegisterResource(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := resource.Kind(vars["kind"])
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	switch kind {
	case resource.KindAgent:
		var res model.AgentResource
		if err := dec.Decode(&res); err != nil || res.ID == "" {
			respondWithError(w, http.StatusBadRequest, "malformed agent resource")
			return
		}
		s.resources.Agents.Add(res)
	case resource.KindLLM:
		var res model.LLMResource
		if err := dec.Decode(&res); err != nil || res.ID == "" {
			respondWithError(w, http.StatusBadRequest, "malformed llm resource")
			return
		}
		s.resources.LLMs.Add(res)
	case resource.KindTask:
		var res model.TaskResource
		if err := dec.Decode(&res); err != nil || res.ID == "" {
			respondWithError(w, http.StatusBadRequest, "malformed task resource")
			return
		}
		s.resources.Tasks.Add(res)
	case resource.KindWorkflow:
		var res model.WorkflowResource
		if err := dec.Decode(&res); err != nil || res.ID == "" {
			respondWithError(w, http.StatusBadRequest, "malformed workflow resource")
			return
		}
		s.resources.Workflows.Add(res)
	default:
		respondWithError(w, http.StatusBadRequest, "unknown resource kind")
		return
	}
	logger.Info("registered resource", zap.String("kind", string(kind)))
	respondOK(w, "registered")
}
