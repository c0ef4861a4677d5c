package core

import "net/http"

type healthResponse struct {
	OK bool `json:"ok"`
}

// HandleHealth reports liveness. It has no dependencies on the upstreams: a
// missing SMS configuration or a down prediction service do not make the
// bridge unhealthy.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{OK: true})
}
