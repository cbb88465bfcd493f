package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Relay is the stateless half of signaling: it routes negotiation
// messages to a single target peer without interpreting their content.
// An unknown or disconnected target drops the message silently; the
// sender observes the outcome through its own connection state.
type Relay struct {
	conns *Registry
}

func NewRelay(conns *Registry) *Relay {
	return &Relay{conns: conns}
}

// Forward delivers v to the target peer. Reports whether a live
// connection was found; delivery beyond that is best effort.
func (r *Relay) Forward(target domain.PeerID, v any) bool {
	conn, ok := r.conns.Get(target)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("target", string(target)).Msg("no connection for target, dropping")
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("forward marshal")
		return false
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("target", string(target)).Msg("forward dropped")
		return false
	}
	return true
}
