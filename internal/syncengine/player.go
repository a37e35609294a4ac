package syncengine

import (
	"sync"
	"time"
)

// Player is the command surface of an embedded video player.
type Player interface {
	Load(url string) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	Position() float64
}

// PlayerObserver receives the callbacks a player fires, whoever caused them.
type PlayerObserver interface {
	HandlePlayerReady()
	HandlePlayerPlay()
	HandlePlayerPause()
}

// VirtualPlayer is a headless player whose position advances with a Clock.
// It reports ready right after Load and fires play/pause callbacks on state changes,
// the way browser players do.
type VirtualPlayer struct {
	mu      sync.Mutex
	clock   Clock
	obs     PlayerObserver
	url     string
	playing bool
	base    float64
	since   time.Time
}

func NewVirtualPlayer(clock Clock) *VirtualPlayer {
	return &VirtualPlayer{clock: clock}
}

// Observe sets the callback target. Callbacks are invoked without holding the player lock.
func (p *VirtualPlayer) Observe(obs PlayerObserver) {
	p.mu.Lock()
	p.obs = obs
	p.mu.Unlock()
}

func (p *VirtualPlayer) Load(url string) error {
	p.mu.Lock()
	p.url = url
	p.playing = false
	p.base = 0
	p.since = p.clock.Now()
	obs := p.obs
	p.mu.Unlock()

	if obs != nil {
		obs.HandlePlayerReady()
	}
	return nil
}

func (p *VirtualPlayer) Play() error {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return nil
	}
	p.playing = true
	p.since = p.clock.Now()
	obs := p.obs
	p.mu.Unlock()

	if obs != nil {
		obs.HandlePlayerPlay()
	}
	return nil
}

func (p *VirtualPlayer) Pause() error {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return nil
	}
	p.base = p.positionLocked()
	p.playing = false
	obs := p.obs
	p.mu.Unlock()

	if obs != nil {
		obs.HandlePlayerPause()
	}
	return nil
}

func (p *VirtualPlayer) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	p.base = seconds
	p.since = p.clock.Now()
	return nil
}

func (p *VirtualPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *VirtualPlayer) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *VirtualPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *VirtualPlayer) positionLocked() float64 {
	if !p.playing {
		return p.base
	}
	return p.base + p.clock.Now().Sub(p.since).Seconds()
}
