package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/utils/httputil"
)

type urlRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// parseCommand reads the command from the path, and the url payload from the
// body for url commands.
func (s *Server) parseCommand(rw http.ResponseWriter, r *http.Request, kind agent.CommandKind, url string) (agent.Command, bool) {
	switch kind {
	case agent.CommandSetURL:
		if err := s.validate.Struct(urlRequest{URL: url}); err != nil {
			respondError(rw, http.StatusBadRequest, err.Error())
			return agent.Command{}, false
		}
		return agent.SetURL(url), true
	case agent.CommandRestartBrowser:
		return agent.RestartBrowser(), true
	case agent.CommandReboot:
		return agent.Reboot(), true
	}
	http.NotFound(rw, r)
	return agent.Command{}, false
}

func (s *Server) apiCommand(rw http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	ip := params["ip"]

	kind, err := agent.ParseCommandKind(params["command"])
	if err != nil {
		http.NotFound(rw, r)
		return
	}
	if !s.validTarget(ip) {
		respondError(rw, http.StatusBadRequest, "invalid IP")
		return
	}

	var req urlRequest
	if kind == agent.CommandSetURL {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			respondError(rw, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	cmd, ok := s.parseCommand(rw, r, kind, req.URL)
	if !ok {
		return
	}

	outcome := s.fleet.DispatchOne(detach(r), ip, cmd)
	if !outcome.Success {
		respondError(rw, http.StatusInternalServerError, outcome.Error)
		return
	}
	httputil.RespondJSONStatus(rw, outcome.StatusCode, outcome.Response)
}

func (s *Server) apiCommandBulk(rw http.ResponseWriter, r *http.Request) {
	kind, err := agent.ParseCommandKind(mux.Vars(r)["command"])
	if err != nil {
		http.NotFound(rw, r)
		return
	}

	var req struct {
		IPs []string `json:"ips" validate:"dive,ip|hostname"`
		URL string   `json:"url"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(rw, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(rw, http.StatusBadRequest, err.Error())
		return
	}
	cmd, ok := s.parseCommand(rw, r, kind, req.URL)
	if !ok {
		return
	}

	outcomes := s.fleet.DispatchBulk(detach(r), req.IPs, cmd)
	if outcomes == nil {
		outcomes = []agent.CommandOutcome{}
	}
	httputil.RespondJSON(rw, outcomes)
}
