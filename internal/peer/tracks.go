package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// LocalTracks is the shared set of tracks this peer sends. Engines read
// it at offer/answer time, so an in-flight negotiation naturally picks
// up the latest bindings.
type LocalTracks struct {
	mu      sync.RWMutex
	audio   webrtc.TrackLocal
	camera  webrtc.TrackLocal
	screen  webrtc.TrackLocal
	sharing bool
}

func NewLocalTracks() *LocalTracks { return &LocalTracks{} }

func (t *LocalTracks) SetAudio(track webrtc.TrackLocal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.audio = track
}

func (t *LocalTracks) SetCamera(track webrtc.TrackLocal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.camera = track
}

// StartScreen swaps the outgoing video to the screen track.
func (t *LocalTracks) StartScreen(track webrtc.TrackLocal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen = track
	t.sharing = true
}

// StopScreen reverts the outgoing video to the camera track, if any.
func (t *LocalTracks) StopScreen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen = nil
	t.sharing = false
}

func (t *LocalTracks) Sharing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sharing
}

func (t *LocalTracks) Audio() webrtc.TrackLocal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.audio
}

// ActiveVideo picks the video track peers should receive: the screen
// track while sharing, the camera otherwise.
func (t *LocalTracks) ActiveVideo() webrtc.TrackLocal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.sharing && t.screen != nil {
		return t.screen
	}
	return t.camera
}
