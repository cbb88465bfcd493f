package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/client"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/peer"
)

// session glues the signal client to the connection pool. The pool is
// created once the server tells us our own peer id, since the polite
// role needs it.
type session struct {
	cfg    *config.Config
	cl     *client.Client
	cancel context.CancelFunc

	mu   sync.Mutex
	pool *peer.Pool
}

func (s *session) HandleWelcome(id domain.PeerID) {
	log.Info().Str("module", "peer.session").Str("id", string(id)).Msg("assigned peer id")
	rtcCfg := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: s.cfg.StunURLs}},
	}
	tracks := peer.NewLocalTracks()

	s.mu.Lock()
	s.pool = peer.NewPool(id, tracks, peer.NewPionFactory(rtcCfg, s.cl, tracks))
	s.mu.Unlock()

	if err := s.cl.Join(s.cfg.Peer.Room, s.cfg.Peer.Name); err != nil {
		log.Error().Err(err).Msg("join")
	}
}

func (s *session) HandleMembers(room string, members []core.MemberDTO) {
	pool := s.getPool()
	if pool == nil {
		return
	}
	ids := make([]domain.PeerID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	log.Info().Str("module", "peer.session").Str("room", room).Int("count", len(ids)).Msg("members snapshot")
	pool.UpdateMembers(ids)
}

func (s *session) HandleOffer(from domain.PeerID, sdp string) {
	if pool := s.getPool(); pool != nil {
		pool.HandleOffer(from, sdp)
	}
}

func (s *session) HandleAnswer(from domain.PeerID, sdp string) {
	if pool := s.getPool(); pool != nil {
		pool.HandleAnswer(from, sdp)
	}
}

func (s *session) HandleCandidate(from domain.PeerID, cand webrtc.ICECandidateInit) {
	if pool := s.getPool(); pool != nil {
		pool.HandleCandidate(from, cand)
	}
}

func (s *session) HandleJoinDenied(reason string) {
	log.Error().Str("module", "peer.session").Str("reason", reason).Msg("join denied")
	s.cancel()
}

func (s *session) HandleRoomExpired() {
	log.Info().Str("module", "peer.session").Msg("room expired, leaving")
	if pool := s.getPool(); pool != nil {
		pool.CloseAll()
	}
	s.cancel()
}

func (s *session) getPool() *peer.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	cl, err := client.Dial(ctx, cfg.Peer.URL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.Peer.URL).Msg("dial signal server")
	}
	defer cl.Close()

	sess := &session{cfg: cfg, cl: cl, cancel: cancel}
	cl.OnEvent = func(msgType string, _ []byte) {
		log.Debug().Str("module", "peer.session").Str("type", msgType).Msg("room event")
	}

	log.Info().Str("url", cfg.Peer.URL).Str("room", cfg.Peer.Room).Msg("peer connected")
	if err := cl.Run(ctx, sess); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("signal loop ended")
	}

	if pool := sess.getPool(); pool != nil {
		pool.CloseAll()
	}
	log.Info().Msg("peer exited")
}
