package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// Negotiation messages pass through untouched: the payload is opaque,
// only the address flips from target to origin.

func (ctl *Controller) handleOfferTo(pid domain.PeerID, data []byte) {
	var p protocol.SDP
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		return
	}
	ctl.Relay.Forward(domain.PeerID(p.Target), protocol.SDP{
		Type: protocol.TypeOffer,
		From: string(pid),
		SDP:  p.SDP,
	})
}

func (ctl *Controller) handleAnswer(pid domain.PeerID, data []byte) {
	var p protocol.SDP
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		return
	}
	ctl.Relay.Forward(domain.PeerID(p.Target), protocol.SDP{
		Type: protocol.TypeAnswer,
		From: string(pid),
		SDP:  p.SDP,
	})
}

func (ctl *Controller) handleCandidateTo(pid domain.PeerID, data []byte) {
	var p protocol.Candidate
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	ctl.Relay.Forward(domain.PeerID(p.Target), protocol.Candidate{
		Type:          protocol.TypeCandidate,
		From:          string(pid),
		Candidate:     p.Candidate,
		SDPMid:        p.SDPMid,
		SDPMLineIndex: p.SDPMLineIndex,
	})
}
