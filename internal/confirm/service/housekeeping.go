package service

import (
	"log/slog"
	"time"
)

// HousekeepingService periodically sweeps the registry for codes whose
// deadline passed but whose timer has not removed them. Timers are the
// primary expiry path; the sweep only bounds how long a missed one lingers.
type HousekeepingService struct {
	Registry *Registry
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a sweeper. A non-positive interval defaults
// to one minute.
func NewHousekeepingService(registry *Registry, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Minute
	}

	return &HousekeepingService{
		Registry: registry,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweeper in the background until Stop is called.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has exited.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	n := s.Registry.Sweep(s.Registry.now())
	if n > 0 {
		s.Logger.Info("expired pending confirmations swept", "count", n)
	}
	s.Logger.Debug("housekeeping sweep completed", "pending", s.Registry.Len())
}
