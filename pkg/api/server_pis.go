package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/fleet"
	"github.com/oursky/pi-fleet-manager/pkg/utils/httputil"

	"go.uber.org/zap"
)

type pisResponse struct {
	Success bool          `json:"success"`
	Pis     []agent.Agent `json:"pis"`
}

func (s *Server) apiPisGet(rw http.ResponseWriter, r *http.Request) {
	agents, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list agents", zap.Error(err))
		respondError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.RespondJSON(rw, agents)
}

func (s *Server) apiPisPost(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		IP   string  `json:"ip" validate:"required,ip|hostname"`
		Name *string `json:"name"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(rw, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(rw, http.StatusBadRequest, err.Error())
		return
	}

	agents, err := s.registry.Add(r.Context(), req.IP, req.Name)
	if errors.Is(err, fleet.ErrAgentExists) {
		respondError(rw, http.StatusBadRequest, "Pi with this IP already exists")
		return
	} else if err != nil {
		s.logger.Error("failed to add agent", zap.Error(err), zap.String("ip", req.IP))
		respondError(rw, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.RespondJSON(rw, pisResponse{Success: true, Pis: agents})
}

func (s *Server) apiPisDelete(rw http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]

	agents, err := s.registry.Remove(r.Context(), ip)
	if err != nil {
		s.logger.Error("failed to remove agent", zap.Error(err), zap.String("ip", ip))
		respondError(rw, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.RespondJSON(rw, pisResponse{Success: true, Pis: agents})
}

func (s *Server) apiPisRename(rw http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]

	var req struct {
		Name string `json:"name"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(rw, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(rw, http.StatusBadRequest, "No name provided")
		return
	}

	renamed, err := s.registry.Rename(r.Context(), ip, req.Name)
	if errors.Is(err, fleet.ErrAgentNotFound) {
		respondError(rw, http.StatusNotFound, "Pi not found")
		return
	} else if err != nil {
		s.logger.Error("failed to rename agent", zap.Error(err), zap.String("ip", ip))
		respondError(rw, http.StatusInternalServerError, err.Error())
		return
	}

	type resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Name    string `json:"name"`
	}
	httputil.RespondJSON(rw, resp{
		Success: true,
		Message: "Name updated",
		Name:    renamed.Name,
	})
}
