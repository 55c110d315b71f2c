package api

import (
	"net/http"

	"github.com/oursky/pi-fleet-manager/pkg/utils/httputil"

	"go.uber.org/zap"
)

func (s *Server) apiStatus(rw http.ResponseWriter, r *http.Request) {
	statuses, err := s.fleet.PollAll(detach(r))
	if err != nil {
		s.logger.Error("failed to poll agents", zap.Error(err))
		respondError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.RespondJSON(rw, statuses)
}
