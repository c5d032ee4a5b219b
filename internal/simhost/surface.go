package simhost

import (
	"fmt"
	"strconv"

	"github.com/wippyai/scriptbridge/host"
)

// surface exposes every command interface and reports the entity's enabled
// capabilities through host.Provider.
type surface struct {
	w *World
	e *Entity
}

func (s *surface) Capability(c host.Capability) (any, bool) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if !s.e.Caps[c] {
		return nil, false
	}
	return s, true
}

func (s *surface) ClearQueuedAction() {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.record(s.e.ID, "clear", "")
	s.e.action = nil
}

func (s *surface) ActionInProgress() bool {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.e.action != nil
}

// start must be called with the world lock held.
func (s *surface) start(name, arg string, frames int, complete func()) {
	s.w.record(s.e.ID, name, arg)
	if frames <= 0 {
		if complete != nil {
			complete()
		}
		return
	}
	s.e.action = &action{name: name, remaining: frames, complete: complete}
}

func (s *surface) MoveTo(pos host.Vec3, run bool) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	arg := pos.String()
	if run {
		arg += " run"
	}
	e := s.e
	s.start("move_to", arg, e.ActionFrames, func() { e.Pos = pos })
}

func (s *surface) PlayAnimation(name string, loop bool) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	arg := name
	if loop {
		arg += " loop"
	}
	s.start("play_animation", arg, s.e.ActionFrames, nil)
}

func (s *surface) Speak(listener host.EntityID, line host.Buffer) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if _, ok := s.w.buffers[line.Addr]; !ok {
		panic("simhost: speak with unallocated buffer")
	}
	s.start("speak", fmt.Sprintf("%d %s", listener, line.Data), s.e.ActionFrames, nil)
}

func (s *surface) Follow(target host.EntityID, distance float64) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.e.Following = target
	s.start("follow", fmt.Sprintf("%d %.1f", target, distance), s.e.ActionFrames, nil)
}

func (s *surface) StopFollowing() {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.e.Following = 0
	s.start("stop_following", "", 0, nil)
}

func (s *surface) Attack(target host.EntityID) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.start("attack", strconv.FormatUint(uint64(target), 10), s.e.ActionFrames, nil)
}

func (s *surface) LookAt(target host.EntityID) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.start("look_at", strconv.FormatUint(uint64(target), 10), s.e.ActionFrames, nil)
}

func (s *surface) Wait(frames int) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.start("wait", strconv.Itoa(frames), frames, nil)
}
