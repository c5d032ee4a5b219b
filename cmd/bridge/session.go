package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge"
	"github.com/wippyai/scriptbridge/config"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/internal/savegame"
	"github.com/wippyai/scriptbridge/internal/simhost"
	"github.com/wippyai/scriptbridge/script"
)

// session is one simulated world with a bridge running its scripts.
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	world  *simhost.World
	bridge *scriptbridge.Bridge
	save   *savegame.Store
}

func newSession(cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (*session, error) {
	s := &session{cfg: cfg, log: log, world: simhost.New()}
	s.spawn()

	b, err := scriptbridge.New(scriptbridge.Options{
		Config:     cfg,
		Host:       s.world.Entries(),
		Logger:     log,
		Registerer: reg,
	})
	if err != nil {
		return nil, fmt.Errorf("create bridge: %w", err)
	}
	s.bridge = b

	if cfg.Sim.SavePath != "" {
		st, err := savegame.Open(cfg.Sim.SavePath)
		if err != nil {
			b.Close()
			return nil, err
		}
		s.save = st
	}

	s.attach()
	return s, nil
}

func (s *session) spawn() {
	for _, e := range s.cfg.Sim.Entities {
		kind := e.Kind
		if kind == "" {
			kind = "npc"
		}
		s.world.Spawn(host.EntityID(e.ID), kind, e.Capabilities...)
		if e.ActionFrames > 0 {
			s.world.SetActionFrames(host.EntityID(e.ID), e.ActionFrames)
		}
	}
	if s.cfg.Sim.Region != "" {
		s.world.SetRegion(s.cfg.Sim.Region)
	}
}

// attach creates an environment for every configured script. A script that
// fails to load is logged and skipped.
func (s *session) attach() {
	for _, e := range s.cfg.Sim.Entities {
		if e.Script != "" {
			s.create(script.EntityOwner(e.ID), e.Script)
		}
	}
	for _, q := range s.cfg.Sim.Quests {
		s.create(script.QuestOwner(q.ID), q.Script)
	}
}

func (s *session) create(owner script.Owner, name string) {
	if _, err := s.bridge.CreateEnvironment(owner, name); err != nil {
		s.log.Error("environment not created",
			zap.Stringer("owner", owner),
			zap.String("script", name),
			zap.Error(err))
	}
}

// frame advances the world one step and then runs one bridge tick.
func (s *session) frame(ctx context.Context) error {
	s.world.Step()
	return s.bridge.Tick(ctx)
}

// reload recreates every environment whose script file is name. It returns
// how many were reloaded.
func (s *session) reload(name string) int {
	base := filepath.Base(name)
	n := 0
	reg := s.bridge.Environments()
	for _, o := range reg.Owners() {
		e, ok := reg.Lookup(o)
		if !ok || filepath.Base(e.File()) != base {
			continue
		}
		if _, err := s.bridge.Reload(o); err != nil {
			s.log.Error("reload failed", zap.Stringer("owner", o), zap.Error(err))
			continue
		}
		n++
	}
	if n > 0 {
		s.log.Info("scripts reloaded", zap.String("file", base), zap.Int("environments", n))
	}
	return n
}

// reset reinitializes the bridge and attaches the configured scripts again.
func (s *session) reset() {
	s.bridge.Reinitialize()
	s.attach()
}

func (s *session) store() error {
	if s.save == nil {
		return fmt.Errorf("no save_path configured")
	}
	return s.save.Save(s.bridge.Environments(), s.bridge.Globals())
}

func (s *session) restore() error {
	if s.save == nil {
		return fmt.Errorf("no save_path configured")
	}
	return s.save.Restore(s.bridge.Environments(), s.bridge.Globals())
}

// saveSize returns the size of the save file, or 0.
func (s *session) saveSize() uint64 {
	if s.save == nil {
		return 0
	}
	fi, err := os.Stat(s.save.Path())
	if err != nil {
		return 0
	}
	return uint64(fi.Size())
}

func (s *session) close() {
	if s.save != nil {
		s.save.Close()
	}
	s.bridge.Close()
}
