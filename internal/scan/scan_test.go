package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func newTestOrchestrator() *Orchestrator {
	return New(nil, nil, Clients{})
}

func TestOrchestrator_SnapshotInitiallyIdle(t *testing.T) {
	o := newTestOrchestrator()
	snap := o.Snapshot()
	if snap.IsRunning {
		t.Error("expected a fresh orchestrator to report IsRunning=false")
	}
}

func TestOrchestrator_RunPublishesProgressAndCompletes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	o := newTestOrchestrator()

	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- o.run(context.Background(), SourceInternal, KindMedia, 2, func(ctx context.Context, publish func(int, string, float64)) error {
			publish(1, "step one", 50)
			close(started)
			<-release
			publish(2, "step two", 100)
			return nil
		})
	}()

	<-started
	want := Progress{
		IsRunning:   true,
		ScanSource:  SourceInternal,
		ScanType:    KindMedia,
		CurrentStep: "step one",
		TotalSteps:  2,
		Step:        1,
		ProgressPct: 50,
	}
	if diff := cmp.Diff(want, o.Snapshot()); diff != "" {
		t.Errorf("mid-run snapshot mismatch (-want +got):\n%s", diff)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("run() returned error = %v", err)
	}

	final := o.Snapshot()
	if final.IsRunning {
		t.Error("expected IsRunning=false after completion")
	}
	if final.CurrentStep != "Scan complete." {
		t.Errorf("expected completion message, got %q", final.CurrentStep)
	}
}

func TestOrchestrator_ExclusiveAcrossConcurrentScans(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	o := newTestOrchestrator()

	inFlight := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = o.run(context.Background(), SourceSonarr, KindRename, 1, func(ctx context.Context, publish func(int, string, float64)) error {
			close(inFlight)
			<-release
			return nil
		})
	}()
	<-inFlight

	err := o.run(context.Background(), SourceRadarr, KindRename, 1, func(ctx context.Context, publish func(int, string, float64)) error {
		t.Fatal("a second scan must not run while one is in flight")
		return nil
	})
	if !errors.Is(err, ErrScanBusy) {
		t.Fatalf("expected ErrScanBusy, got %v", err)
	}

	// The busy attempt must not have clobbered the running scan's snapshot.
	snap := o.Snapshot()
	if snap.ScanSource != SourceSonarr {
		t.Errorf("expected snapshot to still reflect the in-flight sonarr scan, got %+v", snap)
	}

	close(release)
	// Allow the first scan to finish and release the exclusion lock.
	for i := 0; i < 100 && o.Snapshot().IsRunning; i++ {
		time.Sleep(time.Millisecond)
	}

	// A third attempt after release must succeed.
	if err := o.run(context.Background(), SourceLidarr, KindRename, 1, func(ctx context.Context, publish func(int, string, float64)) error {
		return nil
	}); err != nil {
		t.Fatalf("expected the exclusion lock to be free after the first scan finished, got %v", err)
	}
}

func TestOrchestrator_CancelObservedByRunningScan(t *testing.T) {
	o := newTestOrchestrator()

	var mu sync.Mutex
	var cancelledAt int

	err := o.run(context.Background(), SourceInternal, KindMedia, 3, func(ctx context.Context, publish func(int, string, float64)) error {
		for i := 1; i <= 3; i++ {
			if o.cancelled() {
				mu.Lock()
				cancelledAt = i
				mu.Unlock()
				return nil
			}
			publish(i, "unit", float64(i)*33)
			if i == 1 {
				o.Cancel()
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run() returned error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if cancelledAt != 2 {
		t.Errorf("expected cancellation observed at unit 2, got %d", cancelledAt)
	}

	final := o.Snapshot()
	if final.CurrentStep != "Scan cancelled by user." {
		t.Errorf("expected cancellation message, got %q", final.CurrentStep)
	}
}

func TestOrchestrator_FailurePropagatesToStepMessage(t *testing.T) {
	o := newTestOrchestrator()
	boom := errors.New("boom")

	err := o.run(context.Background(), SourceInternal, KindMedia, 1, func(ctx context.Context, publish func(int, string, float64)) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected run() to surface the underlying error, got %v", err)
	}

	final := o.Snapshot()
	if final.CurrentStep != "Scan failed: boom" {
		t.Errorf("expected failure message, got %q", final.CurrentStep)
	}
}
