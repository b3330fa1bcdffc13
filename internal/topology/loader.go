package topology

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/i18n"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// ListTopologies refreshes the catalog. An empty catalog clears the
// remembered topology.
func (s *Store) ListTopologies(ctx context.Context) ([]models.Topology, error) {
	s.beginLoad()
	defer s.endLoad()

	list, err := s.refreshCatalog(ctx)
	if err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return nil, err
	}
	return list, nil
}

// LoadTopology replaces the canvas with topology id and activates it
// remotely. On failure the previous canvas is kept.
func (s *Store) LoadTopology(ctx context.Context, id int) error {
	s.beginLoad()
	defer s.endLoad()

	if err := s.load(ctx, id); err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return err
	}
	return nil
}

// SwitchTopology makes id the current topology, or resolves a new one when
// id is 0.
func (s *Store) SwitchTopology(ctx context.Context, id int) error {
	if id > 0 {
		return s.LoadTopology(ctx, id)
	}
	s.beginLoad()
	defer s.endLoad()
	s.resetCanvas(ctx)
	return s.resolve(ctx, s.Topologies())
}

// Startup lists the catalog and loads the topology to show: the current
// one, else the remembered one, else the one the server marks active.
func (s *Store) Startup(ctx context.Context) error {
	s.beginLoad()
	defer s.endLoad()

	list, err := s.refreshCatalog(ctx)
	if err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return err
	}
	return s.resolve(ctx, list)
}

// resolve picks and loads a topology from catalog. A failing remembered id
// is forgotten silently; a failing fallback is reported.
func (s *Store) resolve(ctx context.Context, catalog []models.Topology) error {
	if len(catalog) == 0 {
		s.resetCanvas(ctx)
		return nil
	}

	candidate := s.CurrentTopologyID()
	if candidate == 0 {
		remembered, err := s.deps.Remembered.ActiveTopology(ctx)
		if err != nil {
			s.logger.Warn("read remembered topology", zap.Error(err))
		}
		candidate = remembered
	}

	var candidateErr error
	if candidate != 0 {
		err := s.load(ctx, candidate)
		if err == nil {
			return nil
		}
		if auth.HandleExpiry(err, s.deps.Navigator) {
			return err
		}
		candidateErr = err
		s.logger.Info("remembered topology unavailable, falling back to active",
			zap.Int("topology_id", candidate),
			zap.Error(err),
		)
		if err := s.deps.Remembered.ClearActiveTopology(ctx); err != nil {
			s.logger.Warn("clear remembered topology", zap.Error(err))
		}
	}

	var active *models.Topology
	for i := range catalog {
		if catalog[i].IsActive {
			active = &catalog[i]
			break
		}
	}
	if active == nil {
		s.logger.Info("no active topology to fall back to")
		return nil
	}
	if active.ID == candidate {
		s.fail(candidateErr, i18n.TopologyLoadFailed)
		return candidateErr
	}

	if err := s.load(ctx, active.ID); err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return err
	}
	return nil
}

// CreateTopology saves the current canvas as a new topology and switches
// to it.
func (s *Store) CreateTopology(ctx context.Context, name, description string) (int, error) {
	return s.CreateFromPayload(ctx, ToPayload(name, description, s.Devices(), s.Connections()))
}

// CreateFromPayload saves doc as a new topology and switches to it.
func (s *Store) CreateFromPayload(ctx context.Context, doc remote.TopologyPayload) (int, error) {
	s.beginLoad()
	defer s.endLoad()

	id, err := s.deps.API.CreateTopology(ctx, doc)
	if err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return 0, fmt.Errorf("create topology %q: %w", doc.Name, err)
	}

	list, err := s.refreshCatalog(ctx)
	if err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return 0, err
	}
	if id == 0 {
		for _, t := range list {
			if t.Name == doc.Name {
				id = t.ID
			}
		}
	}
	if id != 0 {
		if err := s.load(ctx, id); err != nil {
			s.fail(err, i18n.TopologyLoadFailed)
			return id, err
		}
	}
	s.success(i18n.TopologyCreated, doc.Name)
	return id, nil
}

// ActivateTopology makes id the active topology and loads it.
func (s *Store) ActivateTopology(ctx context.Context, id int) error {
	s.beginLoad()
	defer s.endLoad()

	if err := s.load(ctx, id); err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return err
	}
	list, err := s.refreshCatalog(ctx)
	if err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return err
	}
	for _, t := range list {
		if t.ID == id {
			s.success(i18n.TopologyActivated, t.Name)
		}
	}
	return nil
}

// DeleteTopology removes topology id. Deleting the current topology clears
// the canvas and resolves a replacement.
func (s *Store) DeleteTopology(ctx context.Context, id int) error {
	s.beginLoad()
	defer s.endLoad()

	if err := s.deps.API.DeleteTopology(ctx, id); err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return fmt.Errorf("delete topology %d: %w", id, err)
	}
	wasCurrent := s.CurrentTopologyID() == id
	if wasCurrent {
		s.resetCanvas(ctx)
	} else if remembered, _ := s.deps.Remembered.ActiveTopology(ctx); remembered == id {
		_ = s.deps.Remembered.ClearActiveTopology(ctx)
	}

	list, err := s.refreshCatalog(ctx)
	if err != nil {
		s.fail(err, i18n.TopologyLoadFailed)
		return err
	}
	s.success(i18n.TopologyDeleted)
	if wasCurrent {
		return s.resolve(ctx, list)
	}
	return nil
}

// load fetches, maps and activates topology id, then commits it in one
// step. Nothing changes locally unless every remote call succeeded.
func (s *Store) load(ctx context.Context, id int) error {
	doc, err := s.deps.API.GetTopology(ctx, id)
	if err != nil {
		return fmt.Errorf("load topology %d: %w", id, err)
	}
	devices, conns := FromPayload(doc)

	if err := s.deps.API.ActivateTopology(ctx, id); err != nil {
		return fmt.Errorf("activate topology %d: %w", id, err)
	}

	s.mu.Lock()
	s.replaceLocked(devices, conns, id)
	s.mu.Unlock()

	if err := s.deps.Remembered.SetActiveTopology(ctx, id); err != nil {
		s.logger.Warn("remember topology", zap.Error(err))
	}
	s.logger.Info("topology loaded",
		zap.Int("topology_id", id),
		zap.String("name", doc.Name),
		zap.Int("devices", len(devices)),
		zap.Int("connections", len(conns)),
	)
	s.publish(TopicLoaded, id)
	return nil
}

func (s *Store) refreshCatalog(ctx context.Context) ([]models.Topology, error) {
	list, err := s.deps.API.ListTopologies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topologies: %w", err)
	}

	s.mu.Lock()
	s.catalog = append([]models.Topology(nil), list...)
	s.hasTopologies = len(list) > 0
	s.mu.Unlock()

	if len(list) == 0 {
		if err := s.deps.Remembered.ClearActiveTopology(ctx); err != nil {
			s.logger.Warn("clear remembered topology", zap.Error(err))
		}
	}
	s.publish(TopicCatalogUpdated, len(list))
	return list, nil
}

func (s *Store) resetCanvas(ctx context.Context) {
	s.mu.Lock()
	s.replaceLocked(nil, nil, 0)
	s.mu.Unlock()
	if err := s.deps.Remembered.ClearActiveTopology(ctx); err != nil {
		s.logger.Warn("clear remembered topology", zap.Error(err))
	}
	s.publish(TopicLoaded, 0)
}

func (s *Store) success(key string, args ...any) {
	s.report.Success(key, args...)
}
