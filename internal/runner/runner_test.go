package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/strongdm/bubble/internal/cleanup"
	"github.com/strongdm/bubble/internal/configstore"
	"github.com/strongdm/bubble/internal/credentials"
	"github.com/strongdm/bubble/internal/docker"
	"github.com/strongdm/bubble/internal/telemetry/otel"
)

// fakeEngine models just enough docker state to drive a session.
type fakeEngine struct {
	mu         sync.Mutex
	calls      []string
	containers map[string]string // id -> name
	networks   map[string]bool
	images     map[string]bool
	volumes    map[string]bool
	specs      map[string]docker.ContainerSpec // name -> spec
	nextID     int

	preflightErr error
	createErr    map[string]error
	// exec returns the exit status for cmd; nil means 0.
	exec func(opts docker.ExecOptions) int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		containers: map[string]string{},
		networks:   map[string]bool{},
		images:     map[string]bool{},
		volumes:    map[string]bool{},
		specs:      map[string]docker.ContainerSpec{},
		createErr:  map[string]error{},
	}
}

func (f *fakeEngine) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeEngine) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) Preflight(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("preflight")
	return f.preflightErr
}

func (f *fakeEngine) ImageExists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("image exists %s", ref)
	return f.images[ref], nil
}

func (f *fakeEngine) BuildImage(_ context.Context, opts docker.BuildOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("build %s", opts.Tag)
	if opts.Context != nil {
		_, _ = io.Copy(io.Discard, opts.Context)
	}
	if opts.Progress != nil {
		opts.Progress("#5 [2/4] RUN apt-get update")
		opts.Progress("#5 0.412 Get:1 http://deb.debian.org")
	}
	f.images[opts.Tag] = true
	return nil
}

func (f *fakeEngine) ListImages(_ context.Context, repository string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list images")
	return sortedKeys(f.images), nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("rm image %s", ref)
	delete(f.images, ref)
	return nil
}

func (f *fakeEngine) NetworkNames(_ context.Context, filter string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list networks %s", filter)
	var out []string
	for _, name := range sortedKeys(f.networks) {
		if strings.Contains(name, filter) {
			out = append(out, name)
		}
	}
	return out, nil
}

func (f *fakeEngine) CreateNetwork(_ context.Context, name string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create network %s", name)
	f.networks[name] = true
	return "net-" + name, nil
}

func (f *fakeEngine) RemoveNetwork(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("rm network %s", name)
	if !f.networks[name] {
		return docker.ErrNotFound
	}
	delete(f.networks, name)
	return nil
}

func (f *fakeEngine) CreateVolume(_ context.Context, name string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create volume %s", name)
	f.volumes[name] = true
	return nil
}

func (f *fakeEngine) VolumeNames(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.volumes), nil
}

func (f *fakeEngine) RemoveVolume(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("rm volume %s", name)
	delete(f.volumes, name)
	return nil
}

func (f *fakeEngine) CreateContainer(_ context.Context, spec docker.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create container %s", spec.Name)
	if err := f.createErr[spec.Name]; err != nil {
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("id%d", f.nextID)
	f.containers[id] = spec.Name
	f.specs[spec.Name] = spec
	return id, nil
}

func (f *fakeEngine) StartContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start %s", f.containers[id])
	return nil
}

func (f *fakeEngine) StopContainer(_ context.Context, id string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop %s", f.containers[id])
	return nil
}

func (f *fakeEngine) RemoveContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.containers[id]
	if !ok {
		return docker.ErrNotFound
	}
	f.record("rm container %s", name)
	delete(f.containers, id)
	return nil
}

func (f *fakeEngine) ListContainers(_ context.Context, filter string) ([]docker.ContainerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list containers %s", filter)
	var out []docker.ContainerSummary
	for _, id := range sortedKeys(f.containers) {
		if name := f.containers[id]; strings.Contains(name, filter) {
			out = append(out, docker.ContainerSummary{ID: id, Names: []string{name}})
		}
	}
	return out, nil
}

func (f *fakeEngine) Exec(_ context.Context, opts docker.ExecOptions, _ docker.Stream) (int, error) {
	f.mu.Lock()
	f.record("exec %s %s", f.containers[opts.Container], strings.Join(opts.Cmd, " "))
	fn := f.exec
	f.mu.Unlock()
	if fn == nil {
		return 0, nil
	}
	return fn(opts), nil
}

func indexOf(calls []string, want string) int {
	for i, c := range calls {
		if c == want {
			return i
		}
	}
	return -1
}

func assertOrder(t *testing.T, calls []string, want ...string) {
	t.Helper()
	last := -1
	for _, w := range want {
		idx := indexOf(calls, w)
		if idx == -1 {
			t.Fatalf("call %q missing from:\n%s", w, strings.Join(calls, "\n"))
		}
		if idx < last {
			t.Fatalf("call %q out of order in:\n%s", w, strings.Join(calls, "\n"))
		}
		last = idx
	}
}

type testRunner struct {
	*runner
	engine *fakeEngine
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestRunner(t *testing.T, opts options) *testRunner {
	t.Helper()
	if opts.subcommand == "" {
		opts.subcommand = "shell"
	}
	env := map[string]string{"SHELL": "/bin/zsh"}
	engine := newFakeEngine()
	var stdout, stderr bytes.Buffer
	r := &runner{
		opts:       opts,
		projectDir: t.TempDir(),
		project:    "demo",
		stdin:      strings.NewReader(""),
		stdout:     &stdout,
		stderr:     &stderr,
		verbose:    opts.verbose,
		logger:     log.New(&stderr, "", 0),
		getenv:     func(k string) string { return env[k] },
		engine:     engine,
		home:       t.TempDir(),
	}
	r.credentials = &credentials.Resolver{Getenv: r.getenv, Logger: r.logger}
	r.cfg.Apply(opts.overrides)
	return &testRunner{runner: r, engine: engine, stdout: &stdout, stderr: &stderr}
}

func TestRunSessionLifecycleOrder(t *testing.T) {
	tr := newTestRunner(t, options{
		subcommand: "exec",
		args:       []string{"make", "test"},
		overrides:  configstore.Overrides{MySQL: "8.0", Redis: true},
	})
	tr.cfg.Hooks = configstore.Hooks{PostStart: []string{"composer install"}, PreStop: []string{"echo bye"}}
	tr.engine.exec = func(opts docker.ExecOptions) int {
		if strings.Join(opts.Cmd, " ") == "make test" {
			return 3
		}
		return 0
	}

	err := tr.runSession(context.Background())

	var exitErr *ExitCodeError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("expected exit code 3, got %v", err)
	}
	calls := tr.engine.log()
	assertOrder(t, calls,
		"preflight",
		"list containers bubble-demo",
		"build "+tr.mustTag(t),
		"create network bubble-demo",
		"create volume bubble-demo-mysql-data",
		"create container bubble-demo-mysql",
		"exec bubble-demo-mysql mysqladmin ping -h 127.0.0.1 --silent",
		"create container bubble-demo-redis",
		"create container bubble-demo",
		"exec bubble-demo sh -c composer install",
		"exec bubble-demo make test",
		"exec bubble-demo sh -c echo bye",
		"rm container bubble-demo",
		"rm container bubble-demo-redis",
		"rm container bubble-demo-mysql",
		"rm network bubble-demo",
	)
	if len(tr.engine.containers) != 0 || len(tr.engine.networks) != 0 {
		t.Fatalf("resources left behind: %v %v", tr.engine.containers, tr.engine.networks)
	}
	if !tr.engine.volumes["bubble-demo-mysql-data"] {
		t.Fatal("service volume must survive the session")
	}
	if !tr.coord.Drained() {
		t.Fatal("coordinator not drained")
	}
}

func (tr *testRunner) mustTag(t *testing.T) string {
	t.Helper()
	plan, err := tr.buildPlan()
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	return plan.Tag
}

func TestRunSessionUsesCachedImage(t *testing.T) {
	tr := newTestRunner(t, options{subcommand: "shell"})
	tag := tr.mustTag(t)
	tr.engine.images[tag] = true

	if err := tr.runSession(context.Background()); err != nil {
		t.Fatalf("runSession: %v", err)
	}
	calls := tr.engine.log()
	if idx := indexOf(calls, "build "+tag); idx != -1 {
		t.Fatalf("cached image rebuilt:\n%s", strings.Join(calls, "\n"))
	}
	if indexOf(calls, "exec bubble-demo zsh") == -1 {
		t.Fatalf("shell from $SHELL not used:\n%s", strings.Join(calls, "\n"))
	}
}

func TestRunSessionCleansUpWhenServiceFails(t *testing.T) {
	tr := newTestRunner(t, options{
		subcommand: "shell",
		overrides:  configstore.Overrides{MySQL: "8.0", Postgres: "16"},
	})
	tr.engine.createErr["bubble-demo-postgres"] = errors.New("pull access denied for postgres")

	err := tr.runSession(context.Background())
	if err == nil {
		t.Fatal("expected service failure")
	}
	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) || phaseErr.Phase != `service "postgres"` {
		t.Fatalf("expected postgres phase error, got %v", err)
	}
	if !strings.Contains(err.Error(), "pull access denied") {
		t.Fatalf("underlying error text lost: %v", err)
	}
	calls := tr.engine.log()
	if indexOf(calls, "create container bubble-demo") != -1 {
		t.Fatal("primary container created after a service failed")
	}
	assertOrder(t, calls, "rm container bubble-demo-mysql", "rm network bubble-demo")
	if len(tr.engine.containers) != 0 || len(tr.engine.networks) != 0 {
		t.Fatalf("resources left behind: %v %v", tr.engine.containers, tr.engine.networks)
	}
}

func TestRunSessionReconcilesStaleResources(t *testing.T) {
	tr := newTestRunner(t, options{subcommand: "shell"})
	tr.engine.containers["old1"] = "bubble-demo"
	tr.engine.containers["old2"] = "bubble-demo-mysql"
	tr.engine.containers["other"] = "bubble-demonstration"
	tr.engine.networks["bubble-demo"] = true

	if err := tr.runSession(context.Background()); err != nil {
		t.Fatalf("runSession: %v", err)
	}
	calls := tr.engine.log()
	assertOrder(t, calls, "rm container bubble-demo", "rm container bubble-demo-mysql", "rm network bubble-demo", "create network bubble-demo")
	if name := tr.engine.containers["other"]; name != "bubble-demonstration" {
		t.Fatal("unrelated project container removed")
	}
	if !strings.Contains(tr.stderr.String(), "Removed stale container bubble-demo") {
		t.Fatalf("stale removal not reported: %s", tr.stderr.String())
	}
}

func TestRunSessionKeepsExistingNetwork(t *testing.T) {
	tr := newTestRunner(t, options{subcommand: "shell", overrides: configstore.Overrides{Network: "shared"}})
	tr.engine.networks["shared"] = true

	if err := tr.runSession(context.Background()); err != nil {
		t.Fatalf("runSession: %v", err)
	}
	if !tr.engine.networks["shared"] {
		t.Fatal("pre-existing network removed")
	}
	if indexOf(tr.engine.log(), "create network shared") != -1 {
		t.Fatal("existing network recreated")
	}
}

func TestRunSessionNameOverrideClearsOnlyExactContainer(t *testing.T) {
	tr := newTestRunner(t, options{subcommand: "shell", overrides: configstore.Overrides{Name: "web"}})
	tr.engine.containers["stale"] = "web"
	tr.engine.containers["user-db"] = "web-db"
	tr.engine.networks["web-frontend"] = true

	if err := tr.runSession(context.Background()); err != nil {
		t.Fatalf("runSession: %v", err)
	}
	calls := tr.engine.log()
	assertOrder(t, calls, "rm container web", "create container web")
	if _, ok := tr.engine.containers["stale"]; ok {
		t.Fatal("stale container with the override name survived")
	}
	if tr.engine.containers["user-db"] != "web-db" {
		t.Fatal("container sharing the override prefix was removed")
	}
	if !tr.engine.networks["web-frontend"] {
		t.Fatal("network sharing the override prefix was removed")
	}
	if indexOf(calls, "list networks web") != -1 {
		t.Fatalf("networks listed for the override name:\n%s", strings.Join(calls, "\n"))
	}
}

func TestEnsureNetworkAfterDrainRemovesNetwork(t *testing.T) {
	tr := newTestRunner(t, options{subcommand: "shell"})
	tr.initSession()
	if err := tr.coord.Cleanup(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := tr.ensureNetwork(context.Background(), "bubble-demo")
	if !errors.Is(err, cleanup.ErrDrained) {
		t.Fatalf("expected ErrDrained, got %v", err)
	}
	assertOrder(t, tr.engine.log(), "create network bubble-demo", "rm network bubble-demo")
	if tr.engine.networks["bubble-demo"] {
		t.Fatal("network created after drain was left behind")
	}
}

func TestSecretsStayOffCommandLine(t *testing.T) {
	tr := newTestRunner(t, options{subcommand: "claude", args: []string{"--resume"}})
	tr.credentials.Getenv = func(k string) string {
		if k == credentials.EnvVar {
			return "sk-ant-oat-secret"
		}
		return ""
	}

	if err := tr.runSession(context.Background()); err != nil {
		t.Fatalf("runSession: %v", err)
	}
	spec := tr.engine.specs["bubble-demo"]
	for _, env := range spec.Env {
		if strings.Contains(env, "sk-ant-oat-secret") {
			t.Fatalf("token in plain env: %v", spec.Env)
		}
	}
	var found, config bool
	for _, env := range spec.SecretEnv {
		found = found || env == credentials.EnvVar+"=sk-ant-oat-secret"
		config = config || strings.HasPrefix(env, credentials.ConfigEnvVar+"=")
	}
	if !found || !config {
		t.Fatalf("secrets missing from SecretEnv: %v", spec.SecretEnv)
	}
	if indexOf(tr.engine.log(), "exec bubble-demo claude --permission-mode bypassPermissions --resume") == -1 {
		t.Fatalf("claude not launched:\n%s", strings.Join(tr.engine.log(), "\n"))
	}
	if strings.Contains(tr.stderr.String(), "sk-ant-oat-secret") {
		t.Fatal("token logged")
	}
}

func TestRunSessionRecordsTelemetry(t *testing.T) {
	tr := newTestRunner(t, options{subcommand: "exec", args: []string{"true"}, overrides: configstore.Overrides{Redis: true}})
	provider, err := otel.Setup(context.Background(), otel.Config{ServiceName: "bubble", EnableMetrics: true})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	tr.telemetry = provider
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	if err := tr.runSession(context.Background()); err != nil {
		t.Fatalf("runSession: %v", err)
	}
	totals, err := provider.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals[otel.MetricResourcesRemoved] != 3 {
		t.Fatalf("expected 3 removals, got %v", totals)
	}
	if totals[otel.MetricReadinessAttempts] != 1 {
		t.Fatalf("expected 1 readiness attempt, got %v", totals)
	}
	if totals[otel.MetricImageCache] != 1 {
		t.Fatalf("expected 1 cache lookup, got %v", totals)
	}
}

func TestRunSessionBuildOnly(t *testing.T) {
	tr := newTestRunner(t, options{subcommand: "build", overrides: configstore.Overrides{Go: "1.23"}})

	if err := tr.runSession(context.Background()); err != nil {
		t.Fatalf("runSession: %v", err)
	}
	tag := tr.mustTag(t)
	if strings.TrimSpace(tr.stdout.String()) != tag {
		t.Fatalf("expected tag on stdout, got %q", tr.stdout.String())
	}
	for _, c := range tr.engine.log() {
		if strings.HasPrefix(c, "create ") {
			t.Fatalf("build created a resource: %s", c)
		}
	}
	if !strings.Contains(tr.stderr.String(), "#5 [2/4] RUN apt-get update") || strings.Contains(tr.stderr.String(), "deb.debian.org") {
		t.Fatalf("unexpected build output:\n%s", tr.stderr.String())
	}
}

func TestRunSessionPreflightFailureTouchesNothing(t *testing.T) {
	tr := newTestRunner(t, options{subcommand: "shell"})
	tr.engine.preflightErr = errors.New("docker daemon unavailable")

	if err := tr.runSession(context.Background()); err == nil {
		t.Fatal("expected preflight error")
	}
	if calls := tr.engine.log(); len(calls) != 1 {
		t.Fatalf("unexpected calls after preflight failure: %v", calls)
	}
}

func TestDryRunPrintsPlanWithoutDocker(t *testing.T) {
	tr := newTestRunner(t, options{
		subcommand: "shell",
		dryRun:     true,
		overrides:  configstore.Overrides{PHP: "8.3", MySQL: "8.0", Env: []string{"API_KEY=hunter2"}},
	})

	if err := tr.runSession(context.Background()); err != nil {
		t.Fatalf("runSession: %v", err)
	}
	if calls := tr.engine.log(); len(calls) != 0 {
		t.Fatalf("dry run touched docker: %v", calls)
	}
	out := tr.stdout.String()
	for _, want := range []string{"bubble-demo", "php 8.3", "mysql (mysql:8.0)", "API_KEY", "DB_HOST", "shell: zsh"} {
		if !strings.Contains(out, want) {
			t.Fatalf("plan missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Fatalf("plan printed an env value:\n%s", out)
	}
}

func TestFinishLifecycleExitStatus(t *testing.T) {
	tests := []struct {
		name     string
		signaled int32
		code     int
		runErr   error
		wantCode int
		wantErr  string
	}{
		{name: "success"},
		{name: "commandStatus", code: 2, wantCode: 2},
		{name: "runError", code: 0, runErr: errors.New("build: boom"), wantErr: "build: boom"},
		{name: "signalWins", signaled: 143, code: 0, runErr: errors.New("exec interrupted"), wantCode: 143},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRunner(t, options{})
			tr.initSession()
			tr.signaled.Store(tt.signaled)

			err := tr.finishLifecycle(context.Background(), tt.code, tt.runErr)
			var exitErr *ExitCodeError
			switch {
			case tt.wantCode != 0:
				if !errors.As(err, &exitErr) || exitErr.ExitCode() != tt.wantCode {
					t.Fatalf("expected exit code %d, got %v", tt.wantCode, err)
				}
			case tt.wantErr != "":
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("expected %q, got %v", tt.wantErr, err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
			}
			if !tr.coord.Drained() {
				t.Fatal("cleanup not run")
			}
		})
	}
}

func TestSignalRunsCleanupAndExits(t *testing.T) {
	var sigCh chan<- os.Signal
	origNotify, origExit := notifySignals, exitProcess
	notifySignals = func(ch chan<- os.Signal) func() {
		sigCh = ch
		return func() {}
	}
	exits := make(chan int, 2)
	exitProcess = func(code int) { exits <- code }
	t.Cleanup(func() {
		notifySignals = origNotify
		exitProcess = origExit
	})

	tr := newTestRunner(t, options{})
	tr.initSession()
	id, err := tr.engine.CreateContainer(context.Background(), docker.ContainerSpec{Name: "bubble-demo"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.coord.Track(cleanup.Resource{Kind: cleanup.KindContainer, Role: cleanup.RolePrimary, Name: "bubble-demo", ID: id}); err != nil {
		t.Fatal(err)
	}

	stop := tr.watchSignals()
	defer stop()
	sigCh <- syscall.SIGTERM

	select {
	case code := <-exits:
		if code != 128+int(syscall.SIGTERM) {
			t.Fatalf("exit code = %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("signal handler did not exit")
	}
	if !tr.coord.Drained() || len(tr.engine.containers) != 0 {
		t.Fatal("signal path did not clean up")
	}

	// The main flow's own cleanup is now a no-op and reports the signal.
	err = tr.finishLifecycle(context.Background(), 0, nil)
	var exitErr *ExitCodeError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 143 {
		t.Fatalf("expected signal exit code, got %v", err)
	}
	if n := strings.Count(strings.Join(tr.engine.log(), "\n"), "rm container bubble-demo"); n != 1 {
		t.Fatalf("container removed %d times", n)
	}
}

func TestSignalExitCode(t *testing.T) {
	if got := signalExitCode(syscall.SIGINT); got != 130 {
		t.Fatalf("SIGINT -> %d", got)
	}
	if got := signalExitCode(os.Interrupt); got != 130 {
		t.Fatalf("os.Interrupt -> %d", got)
	}
}

func TestSessionCommand(t *testing.T) {
	tests := []struct {
		name string
		opts options
		want []string
	}{
		{name: "shellFromEnv", opts: options{subcommand: "shell"}, want: []string{"zsh"}},
		{name: "shellOverride", opts: options{subcommand: "shell", overrides: configstore.Overrides{Shell: "fish"}}, want: []string{"fish"}},
		{name: "claude", opts: options{subcommand: "claude", args: []string{"-p", "hi"}}, want: []string{"claude", "--permission-mode", "bypassPermissions", "-p", "hi"}},
		{name: "chief", opts: options{subcommand: "chief"}, want: []string{"chief"}},
		{name: "exec", opts: options{subcommand: "exec", args: []string{"go", "test"}}, want: []string{"go", "test"}},
		{name: "build", opts: options{subcommand: "build"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRunner(t, tt.opts)
			got := tr.sessionCommand()
			if strings.Join(got, "\x00") != strings.Join(tt.want, "\x00") || (got == nil) != (tt.want == nil) {
				t.Fatalf("sessionCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContainerAndNetworkNames(t *testing.T) {
	tr := newTestRunner(t, options{overrides: configstore.Overrides{Name: "mybox"}})
	if tr.containerName() != "mybox" || tr.networkName() != "bubble-demo" {
		t.Fatalf("names = %s, %s", tr.containerName(), tr.networkName())
	}
	labels := tr.labels()
	if labels[docker.LabelProject] != "demo" || labels[docker.LabelSession] == "" {
		t.Fatalf("unexpected labels %v", labels)
	}
	if again := tr.labels(); again[docker.LabelSession] != labels[docker.LabelSession] {
		t.Fatal("session id changed within a run")
	}
}

func TestIsBuildStep(t *testing.T) {
	for line, want := range map[string]bool{
		"#7 [3/9] RUN apt-get install -y zsh": true,
		"#7 0.512 Reading package lists...":   false,
		"#1 [internal] load build definition": true,
		"Step 1/9 : FROM debian":              false,
	} {
		if got := isBuildStep(line); got != want {
			t.Fatalf("isBuildStep(%q) = %v", line, got)
		}
	}
}
