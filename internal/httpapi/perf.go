package httpapi

import "net/http"

func (s *Server) handlePerfCalls(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotCallStages())
}
