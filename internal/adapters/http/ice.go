package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/turn"
)

type iceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type iceServersResponse struct {
	IceServers []iceServer `json:"iceServers"`
}

// IceServersHandler returns the STUN URLs plus a freshly minted TURN
// username/credential pair. Stateless: each request derives a new pair.
func IceServersHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := iceServersResponse{}
		if len(cfg.StunURLs) > 0 {
			resp.IceServers = append(resp.IceServers, iceServer{URLs: cfg.StunURLs})
		}
		if len(cfg.TurnURLs) > 0 {
			username, credential := turn.Credentials(cfg.Secret, time.Now())
			resp.IceServers = append(resp.IceServers, iceServer{
				URLs:       cfg.TurnURLs,
				Username:   username,
				Credential: credential,
			})
		}
		c.JSON(http.StatusOK, resp)
	}
}
