package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ProbeFunc checks reachability of the remote service.
type ProbeFunc func(ctx context.Context) error

// ConnectivityMonitor probes the remote service on a fixed schedule and
// drives the manager's online/offline state from the result. Deployments
// without a remote service never start one and stay nominally online.
type ConnectivityMonitor struct {
	cron    *cron.Cron
	manager *Manager
	probe   ProbeFunc
	timeout time.Duration
	logger  zerolog.Logger
}

func NewConnectivityMonitor(manager *Manager, probe ProbeFunc, timeout time.Duration, logger zerolog.Logger) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		cron:    cron.New(cron.WithSeconds()),
		manager: manager,
		probe:   probe,
		timeout: timeout,
		logger:  logger,
	}
}

func (m *ConnectivityMonitor) Start(interval time.Duration) error {
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 30
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	if _, err := m.cron.AddFunc(spec, m.check); err != nil {
		return err
	}
	m.cron.Start()
	m.check()
	return nil
}

func (m *ConnectivityMonitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *ConnectivityMonitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	err := m.probe(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("connectivity probe failed")
	}
	m.manager.SetOnline(err == nil)
}
