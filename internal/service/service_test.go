package service

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"tracker-service/internal/clock"
	"tracker-service/internal/config"
	"tracker-service/internal/gps"
	"tracker-service/internal/report"
	"tracker-service/internal/sched"
	"tracker-service/internal/status"
	"tracker-service/internal/storage"
)

type fakeAcquirer struct {
	fix     gps.FixRecord
	ok      bool
	calls   int
	timeout time.Duration
}

func (a *fakeAcquirer) Acquire(timeout time.Duration) (gps.FixRecord, bool) {
	a.calls++
	a.timeout = timeout
	return a.fix, a.ok
}

type fakeReporter struct {
	got    []gps.FixRecord
	result report.Result
}

func (r *fakeReporter) Report(fix gps.FixRecord) report.Result {
	r.got = append(r.got, fix)
	return r.result
}

type fakeLogbook struct {
	timestamps []string
	fixes      []gps.FixRecord
	err        error
}

func (l *fakeLogbook) Append(timestamp string, fix gps.FixRecord) error {
	l.timestamps = append(l.timestamps, timestamp)
	l.fixes = append(l.fixes, fix)
	return l.err
}

type fakeHistory struct {
	outcomes []string
}

func (h *fakeHistory) SaveFix(ctx context.Context, recordedAt string, lat, lon float64, outcome string) error {
	h.outcomes = append(h.outcomes, outcome)
	return nil
}

type recordingSink struct {
	updates []status.Update
}

func (s *recordingSink) Publish(u status.Update) {
	s.updates = append(s.updates, u)
}

func newTestService(acq *fakeAcquirer, rep *fakeReporter, lb *fakeLogbook) (*Service, *recordingSink) {
	sink := &recordingSink{}
	clk := clock.NewSystem()
	svc := &Service{
		Config:    config.Default(),
		Logger:    log.New(os.Stdout, "TEST: ", log.LstdFlags),
		Clock:     clk,
		Scheduler: sched.New(60*time.Second, clk.Millis()),
		GPS:       acq,
		Reporter:  rep,
		Log:       lb,
		Status:    sink,
	}
	return svc, sink
}

func TestCycleWithFix(t *testing.T) {
	fix := gps.FixRecord{Lat: 1.5, Lon: 103.75, Valid: true}
	acq := &fakeAcquirer{fix: fix, ok: true}
	rep := &fakeReporter{result: report.Result{Outcome: report.Delivered, Clock: "12/10/16,17:30:00+32"}}
	lb := &fakeLogbook{}
	hist := &fakeHistory{}

	svc, sink := newTestService(acq, rep, lb)
	svc.History = hist
	svc.runCycle(context.Background())

	if acq.timeout != svc.Config.GPS.AcquireTimeout {
		t.Errorf("acquire timeout = %v, want %v", acq.timeout, svc.Config.GPS.AcquireTimeout)
	}

	// Reporter and log writer both observe exactly the acquired fix.
	if len(rep.got) != 1 || rep.got[0] != fix {
		t.Errorf("reporter saw %+v, want %+v", rep.got, fix)
	}
	if len(lb.fixes) != 1 || lb.fixes[0] != fix {
		t.Errorf("log writer saw %+v, want %+v", lb.fixes, fix)
	}
	if lb.timestamps[0] != "12/10/16,17:30:00+32" {
		t.Errorf("log timestamp = %q", lb.timestamps[0])
	}

	if len(hist.outcomes) != 1 || hist.outcomes[0] != "delivered" {
		t.Errorf("history outcomes = %v", hist.outcomes)
	}

	if len(sink.updates) != 1 || !sink.updates[0].HasFix {
		t.Fatalf("status updates = %+v", sink.updates)
	}
	if svc.state != stateIdle {
		t.Error("service must return to idle after the cycle")
	}
}

func TestCycleWithoutFixSkipsConsumers(t *testing.T) {
	acq := &fakeAcquirer{ok: false}
	rep := &fakeReporter{}
	lb := &fakeLogbook{}

	svc, sink := newTestService(acq, rep, lb)
	svc.runCycle(context.Background())

	if len(rep.got) != 0 {
		t.Error("reporter must not run without a fix")
	}
	if len(lb.fixes) != 0 {
		t.Error("log writer must not run without a fix")
	}
	if len(sink.updates) != 1 || sink.updates[0].HasFix {
		t.Errorf("expected a no-fix status update, got %+v", sink.updates)
	}
}

func TestLogWriterStillRunsWhenAttachFails(t *testing.T) {
	fix := gps.FixRecord{Lat: 1.5, Lon: 103.75, Valid: true}
	acq := &fakeAcquirer{fix: fix, ok: true}
	rep := &fakeReporter{result: report.Result{Outcome: report.AttachFailed, Clock: "ts"}}
	lb := &fakeLogbook{}

	svc, _ := newTestService(acq, rep, lb)
	svc.runCycle(context.Background())

	if len(lb.fixes) != 1 {
		t.Fatal("log writer must run even when the uplink attach failed")
	}
}

func TestLogWriterFailureIsNotFatal(t *testing.T) {
	acq := &fakeAcquirer{fix: gps.FixRecord{Lat: 1, Lon: 2, Valid: true}, ok: true}
	rep := &fakeReporter{result: report.Result{Outcome: report.Delivered}}
	lb := &fakeLogbook{err: errors.New("disk full")}

	svc, sink := newTestService(acq, rep, lb)
	svc.runCycle(context.Background())

	// The cycle still completes and narrates.
	if len(sink.updates) != 1 {
		t.Errorf("status updates = %+v", sink.updates)
	}
	if svc.state != stateIdle {
		t.Error("service must return to idle after a log failure")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	acq := &fakeAcquirer{ok: false}
	svc, _ := newTestService(acq, &fakeReporter{}, &fakeLogbook{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestLogResumePointAnnouncesNewestFix(t *testing.T) {
	store := storage.NewTrackStore(filepath.Join(t.TempDir(), "track.db"))
	defer store.Close()
	if err := store.SaveFix(context.Background(), "12/10/16,17:30:00+32", 1.5, 103.75, "delivered"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logResumePoint(store, log.New(&buf, "", 0))

	if !strings.Contains(buf.String(), "12/10/16,17:30:00+32") {
		t.Errorf("resume line missing stored timestamp: %q", buf.String())
	}
}

func TestLogResumePointOnEmptyHistory(t *testing.T) {
	store := storage.NewTrackStore(filepath.Join(t.TempDir(), "track.db"))
	defer store.Close()

	var buf bytes.Buffer
	logResumePoint(store, log.New(&buf, "", 0))

	if buf.Len() != 0 {
		t.Errorf("expected silence on empty history, got %q", buf.String())
	}
}

func TestSchedulerReArmsAfterEmptyCycle(t *testing.T) {
	acq := &fakeAcquirer{ok: false}
	svc, _ := newTestService(acq, &fakeReporter{}, &fakeLogbook{})

	now := svc.Clock.Millis()
	if !svc.Scheduler.Tick(now) {
		t.Fatal("expected first tick to fire")
	}
	svc.runCycle(context.Background())

	// A no-fix cycle must not disturb the schedule.
	if svc.Scheduler.Tick(now + 1) {
		t.Error("scheduler fired again inside the same interval")
	}
	if !svc.Scheduler.Tick(now + 60000) {
		t.Error("scheduler must re-arm for the next interval")
	}
}
