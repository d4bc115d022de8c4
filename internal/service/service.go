// Package service composes the tracking cycle: scheduler tick, fix
// acquisition, uplink report, track log append. Strictly sequential,
// one subsystem at a time; no cycle outcome is ever fatal.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"tracker-service/internal/cell"
	"tracker-service/internal/clock"
	"tracker-service/internal/config"
	"tracker-service/internal/gps"
	"tracker-service/internal/nmea"
	"tracker-service/internal/report"
	"tracker-service/internal/sched"
	"tracker-service/internal/status"
	"tracker-service/internal/storage"
	"tracker-service/internal/tracklog"
)

// How often the scheduler is polled. Polling more often than the cycle
// interval only sharpens trigger latency; correctness does not depend
// on it.
const pollInterval = 100 * time.Millisecond

// Cycle states.
const (
	stateIdle = iota
	stateActive
)

// Acquirer produces at most one fix per cycle.
type Acquirer interface {
	Acquire(timeout time.Duration) (gps.FixRecord, bool)
}

// Reporter performs the uplink attempt for a fix.
type Reporter interface {
	Report(fix gps.FixRecord) report.Result
}

// Logbook appends one track record per fix.
type Logbook interface {
	Append(timestamp string, fix gps.FixRecord) error
}

// History optionally persists cycle results for later queries.
type History interface {
	SaveFix(ctx context.Context, recordedAt string, lat, lon float64, outcome string) error
}

type Service struct {
	Config    *config.Config
	Logger    *log.Logger
	Clock     clock.Clock
	Scheduler *sched.Scheduler
	GPS       Acquirer
	Reporter  Reporter
	Log       Logbook
	History   History     // may be nil
	Status    status.Sink // never nil; Nop when narration is off

	state   int
	cleanup []func()
}

// cycleContext carries one cycle's data between the phases. It is
// created fresh on every trigger and dropped when the cycle ends, so a
// stale fix can never leak into the next cycle.
type cycleContext struct {
	fix    gps.FixRecord
	hasFix bool
	result report.Result
}

// New wires the production service from the static configuration.
func New(cfg *config.Config, logger *log.Logger, version string) (*Service, error) {
	clk := clock.NewSystem()

	svc := &Service{
		Config:    cfg,
		Logger:    logger,
		Clock:     clk,
		Scheduler: sched.New(cfg.CycleInterval, clk.Millis()),
		Status:    status.Nop{},
	}

	debugf := func(format string, args ...interface{}) {
		if cfg.Debug {
			logger.Printf(format, args...)
		}
	}

	channel := gps.NewSerialChannel(cfg.GPS.Device, cfg.GPS.Baud)
	svc.GPS = gps.NewAcquirer(channel, func() gps.Parser { return nmea.New() }, clk, debugf)

	power := cell.NewPowerController(cfg.Radio.GPIOChip, cfg.Radio.GPIOLine, debugf)
	if err := power.Init(); err != nil {
		return nil, fmt.Errorf("failed to init radio power control: %v", err)
	}
	svc.cleanup = append(svc.cleanup, func() { power.Close() })

	transport, err := cell.DialModemManager(cfg.Debug, logger.Printf)
	if err != nil {
		power.Close()
		return nil, fmt.Errorf("failed to connect to ModemManager: %v", err)
	}
	svc.cleanup = append(svc.cleanup, func() { transport.Close() })

	radio := cell.NewDriver(power, transport, logger.Printf)
	svc.Reporter = report.NewReporter(radio,
		report.APN{Name: cfg.APN.Name, User: cfg.APN.User, Pass: cfg.APN.Pass},
		report.Endpoint{
			Server:      cfg.Endpoint.Server,
			Path:        cfg.Endpoint.Path,
			Port:        cfg.Endpoint.Port,
			Host:        cfg.Endpoint.Host,
			Token:       cfg.Endpoint.Token,
			ContentType: cfg.Endpoint.ContentType,
		},
		report.Streams{Latitude: cfg.Streams.Latitude, Longitude: cfg.Streams.Longitude},
		cfg.Radio.InitialClock,
		logger.Printf)

	svc.Log = tracklog.NewWriter(tracklog.FileStore{}, cfg.TrackLog)

	var sinks []status.Sink
	if cfg.Debug {
		sinks = append(sinks, status.NewLogSink(logger.Printf))
	}
	if cfg.RedisURL != "" {
		redisSink, err := status.NewRedisSink(cfg.RedisURL, logger)
		if err != nil {
			logger.Printf("Disabling redis sink: %v", err)
		} else if err := pingSink(redisSink); err != nil {
			logger.Printf("Disabling redis sink: %v", err)
			redisSink.Close()
		} else {
			sinks = append(sinks, redisSink)
			svc.cleanup = append(svc.cleanup, func() { redisSink.Close() })
		}
	}
	if len(sinks) > 0 {
		svc.Status = status.Fanout(sinks...)
	}

	if cfg.HistoryDB != "" {
		store := storage.NewTrackStore(cfg.HistoryDB)
		svc.History = store
		svc.cleanup = append(svc.cleanup, func() { store.Close() })
		logResumePoint(store, logger)
	}

	logger.Printf("tracker-service v%s, cycle interval %v", version, cfg.CycleInterval)
	return svc, nil
}

// Run polls the scheduler until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.Scheduler.Tick(s.Clock.Millis()) {
				s.runCycle(ctx)
			}
		}
	}
}

// runCycle is one Active phase: acquire, then report and log if and
// only if a fix was obtained. Both consumers see the same cycle-local
// fix. The scheduler re-arms no matter what happened here.
func (s *Service) runCycle(ctx context.Context) {
	s.state = stateActive
	defer func() { s.state = stateIdle }()

	cyc := &cycleContext{}
	cyc.fix, cyc.hasFix = s.GPS.Acquire(s.Config.GPS.AcquireTimeout)

	if !cyc.hasFix {
		s.Logger.Printf("no fix this cycle")
		s.Status.Publish(status.Update{})
		return
	}

	cyc.result = s.Reporter.Report(cyc.fix)
	s.Logger.Printf("fix (%.4f, %.4f), uplink %s", cyc.fix.Lat, cyc.fix.Lon, cyc.result.Outcome)

	if err := s.Log.Append(cyc.result.Clock, cyc.fix); err != nil {
		s.Logger.Printf("track log: %v", err)
	}

	if s.History != nil {
		if err := s.History.SaveFix(ctx, cyc.result.Clock, cyc.fix.Lat, cyc.fix.Lon, cyc.result.Outcome.String()); err != nil {
			s.Logger.Printf("history store: %v", err)
		}
	}

	s.Status.Publish(status.Update{
		Timestamp: cyc.result.Clock,
		Latitude:  cyc.fix.Lat,
		Longitude: cyc.fix.Lon,
		HasFix:    true,
		Outcome:   cyc.result.Outcome.String(),
	})
}

const startupProbeTimeout = 5 * time.Second

func pingSink(sink *status.RedisSink) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupProbeTimeout)
	defer cancel()
	return sink.Ping(ctx)
}

// logResumePoint announces the newest stored fix at startup so operators
// can see where the history left off. Failures only cost the log line.
func logResumePoint(store *storage.TrackStore, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), startupProbeTimeout)
	defer cancel()

	points, err := store.RecentFixes(ctx, 1)
	if err != nil {
		logger.Printf("history store: %v", err)
		return
	}
	if len(points) > 0 {
		logger.Printf("history resumes after fix at %s (%.4f, %.4f)",
			points[0].RecordedAt, points[0].Latitude, points[0].Longitude)
	}
}

func (s *Service) close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = nil
}
