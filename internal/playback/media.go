package playback

import (
	"math"
	"sync"
)

// Media is the media element a session drives.
type Media interface {
	Load(src string)
	Play() error
	Pause()
	Unload()
	Seek(seconds float64)
	CurrentTime() float64
	Duration() float64
}

// Directives are the commands a remote player still has to apply.
type Directives struct {
	Src     string   `json:"src,omitempty"`
	SeekTo  *float64 `json:"seekTo,omitempty"`
	Playing bool     `json:"playing"`
	Unload  bool     `json:"unload,omitempty"`
}

// RemoteMedia stands in for a media element living in a browser. The browser reports samples
// through Report; commands issued by the session are collected until TakeDirectives.
type RemoteMedia struct {
	mu          sync.Mutex
	src         string
	currentTime float64
	duration    float64
	playing     bool
	seekTo      *float64
	unloaded    bool
}

func NewRemoteMedia() *RemoteMedia {
	return &RemoteMedia{duration: math.NaN()}
}

// Report records a sample from the player. A NaN duration means the player does not know it yet.
func (m *RemoteMedia) Report(currentTime, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !math.IsNaN(currentTime) && currentTime >= 0 {
		m.currentTime = currentTime
	}
	m.duration = duration
}

// TakeDirectives returns pending commands and clears the one-shot ones.
func (m *RemoteMedia) TakeDirectives() Directives {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := Directives{Src: m.src, SeekTo: m.seekTo, Playing: m.playing, Unload: m.unloaded}
	m.seekTo = nil
	return d
}

func (m *RemoteMedia) Load(src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.src = src
	m.currentTime = 0
	m.duration = math.NaN()
	m.seekTo = nil
	m.unloaded = false
}

func (m *RemoteMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = true
	return nil
}

func (m *RemoteMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
}

func (m *RemoteMedia) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.src = ""
	m.playing = false
	m.seekTo = nil
	m.unloaded = true
}

func (m *RemoteMedia) Seek(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = seconds
	m.seekTo = &seconds
}

func (m *RemoteMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *RemoteMedia) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}
