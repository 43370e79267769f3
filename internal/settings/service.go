package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/2beens/trainlog/internal/training"

	log "github.com/sirupsen/logrus"
)

type settingsRepo interface {
	Get(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Service keeps the settings in memory and writes through to the repo
// on change. It also serves phases and objectives to the training
// handlers.
type Service struct {
	repo settingsRepo

	mutex    sync.Mutex
	settings Settings
	loaded   bool
}

func NewService(repo settingsRepo) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) Get(ctx context.Context) (Settings, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.load(ctx); err != nil {
		return Settings{}, err
	}
	return s.settings, nil
}

func (s *Service) Update(ctx context.Context, updated Settings) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if updated.Phases == nil {
		updated.Phases = []training.TrainingPhase{}
	}
	if updated.Objectives == nil {
		updated.Objectives = []training.Objective{}
	}

	if err := s.repo.Save(ctx, updated); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.settings = updated
	s.loaded = true
	log.Debugf("settings updated, theme %q, %d phases, %d objectives",
		updated.Theme, len(updated.Phases), len(updated.Objectives))
	return nil
}

// AddPhase appends a phase, typically when a pasted plan carries one.
// A phase with the same name replaces the old one.
func (s *Service) AddPhase(ctx context.Context, phase training.TrainingPhase) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.load(ctx); err != nil {
		return err
	}

	updated := s.settings
	replaced := false
	for i := range updated.Phases {
		if updated.Phases[i].Name == phase.Name {
			updated.Phases[i] = phase
			replaced = true
			break
		}
	}
	if !replaced {
		updated.Phases = append(updated.Phases, phase)
	}

	if err := s.repo.Save(ctx, updated); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.settings = updated
	return nil
}

func (s *Service) Phases(ctx context.Context) ([]training.TrainingPhase, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return settings.Phases, nil
}

func (s *Service) Objectives(ctx context.Context) ([]training.Objective, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return settings.Objectives, nil
}

// load must be called with the mutex held.
func (s *Service) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s.settings = settings
	s.loaded = true
	return nil
}
