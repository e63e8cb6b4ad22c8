package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/strongdm/bubble/internal/cleanup"
	"github.com/strongdm/bubble/internal/docker"
)

type fakeEngine struct {
	calls     []string
	specs     []docker.ContainerSpec
	probeFail map[string]bool
	execs     int
	createErr error
}

func (f *fakeEngine) Exec(_ context.Context, opts docker.ExecOptions, _ docker.Stream) (int, error) {
	f.execs++
	f.calls = append(f.calls, "exec "+opts.Container)
	if f.probeFail[opts.Container] {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeEngine) CreateVolume(_ context.Context, name string, _ map[string]string) error {
	f.calls = append(f.calls, "volume "+name)
	return nil
}

func (f *fakeEngine) CreateContainer(_ context.Context, spec docker.ContainerSpec) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.calls = append(f.calls, "create "+spec.Name)
	f.specs = append(f.specs, spec)
	return "id-" + spec.Name, nil
}

func (f *fakeEngine) StartContainer(_ context.Context, id string) error {
	f.calls = append(f.calls, "start "+id)
	return nil
}

type fakeTracker struct {
	tracked []cleanup.Resource
}

func (f *fakeTracker) Track(r cleanup.Resource) error {
	f.tracked = append(f.tracked, r)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestWaitReadyExhaustsBudgetExactly(t *testing.T) {
	engine := &fakeEngine{probeFail: map[string]bool{"db": true}}
	var slept time.Duration
	sleeps := 0
	p := &Prober{Engine: engine, Sleep: func(_ context.Context, d time.Duration) error {
		slept += d
		sleeps++
		return nil
	}}

	err := p.WaitReady(context.Background(), "db", []string{"false"}, Policy{MaxAttempts: 5, Delay: 2 * time.Second})
	var re *ReadinessError
	if !errors.As(err, &re) || !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ReadinessError, got %v", err)
	}
	if re.Container != "db" || re.Attempts != 5 {
		t.Fatalf("unexpected error fields %+v", re)
	}
	if engine.execs != 5 {
		t.Fatalf("expected exactly 5 probe executions, got %d", engine.execs)
	}
	if sleeps != 4 || slept < 4*2*time.Second {
		t.Fatalf("expected 4 sleeps totalling >= 8s, got %d / %s", sleeps, slept)
	}
}

func TestWaitReadyRealClockElapsed(t *testing.T) {
	engine := &fakeEngine{probeFail: map[string]bool{"db": true}}
	p := &Prober{Engine: engine}
	delay := 10 * time.Millisecond

	started := time.Now()
	err := p.WaitReady(context.Background(), "db", []string{"false"}, Policy{MaxAttempts: 3, Delay: delay})
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if elapsed := time.Since(started); elapsed < 2*delay {
		t.Fatalf("elapsed %s shorter than %s", elapsed, 2*delay)
	}
	if engine.execs != 3 {
		t.Fatalf("expected 3 executions, got %d", engine.execs)
	}
}

func TestWaitReadySucceedsEarly(t *testing.T) {
	engine := &fakeEngine{}
	attempts := 0
	p := &Prober{Engine: engine, Sleep: noSleep, OnAttempt: func(string, int, bool) { attempts++ }}
	if err := p.WaitReady(context.Background(), "db", []string{"true"}, DefaultPolicy); err != nil {
		t.Fatal(err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestWaitReadyHonoursCancellation(t *testing.T) {
	engine := &fakeEngine{probeFail: map[string]bool{"db": true}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Prober{Engine: engine}
	err := p.WaitReady(ctx, "db", []string{"false"}, Policy{MaxAttempts: 3, Delay: time.Hour})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLauncherStartsInOrderAndTracks(t *testing.T) {
	engine := &fakeEngine{}
	tracker := &fakeTracker{}
	l := &Launcher{Engine: engine, Tracker: tracker, Prober: &Prober{Engine: engine, Sleep: noSleep}, Prefix: "bubble"}

	descs := []Descriptor{
		{Name: "mysql", Image: "mysql:8.0", VolumePath: "/var/lib/mysql", Probe: []string{"true"}},
		{Name: "redis", Image: "redis:alpine", Probe: []string{"true"}},
	}
	running, err := l.Start(context.Background(), descs, "bubble-app", "app")
	if err != nil {
		t.Fatal(err)
	}
	if len(running) != 2 || running[0].Container != "bubble-app-mysql" {
		t.Fatalf("unexpected running %+v", running)
	}
	want := []string{
		"volume bubble-app-mysql-data",
		"create bubble-app-mysql",
		"start id-bubble-app-mysql",
		"exec id-bubble-app-mysql",
		"create bubble-app-redis",
		"start id-bubble-app-redis",
		"exec id-bubble-app-redis",
	}
	if strings.Join(engine.calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected calls\n%s", strings.Join(engine.calls, "\n"))
	}
	spec := engine.specs[0]
	if spec.Network != "bubble-app" || spec.Aliases[0] != "mysql" || spec.Binds[0] != "bubble-app-mysql-data:/var/lib/mysql" {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if spec.Labels[docker.LabelRole] != "service" {
		t.Fatalf("missing role label %v", spec.Labels)
	}
	if len(tracker.tracked) != 2 || tracker.tracked[1].Role != cleanup.RoleService {
		t.Fatalf("unexpected tracked %+v", tracker.tracked)
	}
}

func TestLauncherStopsOnFirstUnreadyService(t *testing.T) {
	engine := &fakeEngine{probeFail: map[string]bool{"id-bubble-app-mysql": true}}
	tracker := &fakeTracker{}
	l := &Launcher{
		Engine:  engine,
		Tracker: tracker,
		Prober:  &Prober{Engine: engine, Sleep: noSleep},
		Policy:  Policy{MaxAttempts: 2, Delay: time.Millisecond},
		Prefix:  "bubble",
	}
	descs := []Descriptor{
		{Name: "mysql", Image: "mysql:8.0", Probe: []string{"false"}},
		{Name: "redis", Image: "redis:alpine", Probe: []string{"true"}},
	}

	running, err := l.Start(context.Background(), descs, "bubble-app", "app")
	var se *StartError
	if !errors.As(err, &se) || se.Service != "mysql" || !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected mysql readiness failure, got %v", err)
	}
	if len(running) != 1 {
		t.Fatalf("started service should be returned, got %+v", running)
	}
	if len(tracker.tracked) != 1 {
		t.Fatalf("failed service must stay tracked, got %+v", tracker.tracked)
	}
	for _, c := range engine.calls {
		if strings.Contains(c, "redis") {
			t.Fatalf("redis must not start after mysql failed: %v", engine.calls)
		}
	}
}

func TestLauncherCreateFailureNotTracked(t *testing.T) {
	engine := &fakeEngine{createErr: errors.New("pull access denied")}
	tracker := &fakeTracker{}
	l := &Launcher{Engine: engine, Tracker: tracker, Prefix: "bubble"}

	_, err := l.Start(context.Background(), []Descriptor{{Name: "redis", Image: "redis:alpine"}}, "n", "app")
	if err == nil || !strings.Contains(err.Error(), "pull access denied") {
		t.Fatalf("expected create error, got %v", err)
	}
	if len(tracker.tracked) != 0 {
		t.Fatal("a container that was never created must not be tracked")
	}
}

type removerFunc func(ctx context.Context, id string) error

func (f removerFunc) StopAndRemove(ctx context.Context, id string) error { return f(ctx, id) }

func TestLauncherAfterDrainRemovesCreatedService(t *testing.T) {
	engine := &fakeEngine{}
	var removed []string
	coord := cleanup.New(removerFunc(func(_ context.Context, id string) error {
		removed = append(removed, id)
		return nil
	}), nil, nil)
	if err := coord.Cleanup(context.Background()); err != nil {
		t.Fatal(err)
	}
	l := &Launcher{Engine: engine, Tracker: coord, Prober: &Prober{Engine: engine, Sleep: noSleep}, Prefix: "bubble"}

	_, err := l.Start(context.Background(), []Descriptor{{Name: "redis", Image: "redis:alpine", Probe: []string{"true"}}}, "n", "app")
	if !errors.Is(err, cleanup.ErrDrained) {
		t.Fatalf("expected ErrDrained, got %v", err)
	}
	if strings.Join(removed, ",") != "id-bubble-app-redis" {
		t.Fatalf("created service not removed: %v", removed)
	}
	for _, c := range engine.calls {
		if strings.HasPrefix(c, "start ") {
			t.Fatalf("service started after drain: %v", engine.calls)
		}
	}
}
