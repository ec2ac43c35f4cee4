package api

import (
	"net/http"
	"time"
)

type ServerInfoHandler struct {
	serverName     string
	accessTokenTTL time.Duration
}

func NewServerInfoHandler(name string, accessTokenTTL time.Duration) *ServerInfoHandler {
	return &ServerInfoHandler{
		serverName:     name,
		accessTokenTTL: accessTokenTTL,
	}
}

type ServerInfoResponse struct {
	Name                  string `json:"name"`
	APIVersion            string `json:"apiVersion"`
	AccessTokenTTLSeconds int64  `json:"accessTokenTtlSeconds"`
}

// GET /api/v1/server/info
func (h *ServerInfoHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServerInfoResponse{
		Name:                  h.serverName,
		APIVersion:            "v1",
		AccessTokenTTLSeconds: int64(h.accessTokenTTL.Seconds()),
	})
}
