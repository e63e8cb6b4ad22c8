package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/strongdm/bubble/internal/cleanup"
	"github.com/strongdm/bubble/internal/configstore"
	"github.com/strongdm/bubble/internal/docker"
)

type fakeEngine struct {
	calls     []string
	spec      docker.ContainerSpec
	execOpts  []docker.ExecOptions
	execCode  int
	execOut   string
	stopErr   error
	removeErr error
	startErr  error
}

func (f *fakeEngine) CreateContainer(_ context.Context, spec docker.ContainerSpec) (string, error) {
	f.calls = append(f.calls, "create")
	f.spec = spec
	return "cid", nil
}

func (f *fakeEngine) StartContainer(context.Context, string) error {
	f.calls = append(f.calls, "start")
	return f.startErr
}

func (f *fakeEngine) StopContainer(_ context.Context, id string, grace time.Duration) error {
	f.calls = append(f.calls, fmt.Sprintf("stop %s %s", id, grace))
	return f.stopErr
}

func (f *fakeEngine) RemoveContainer(_ context.Context, id string) error {
	f.calls = append(f.calls, "rm "+id)
	return f.removeErr
}

func (f *fakeEngine) Exec(_ context.Context, opts docker.ExecOptions, s docker.Stream) (int, error) {
	f.execOpts = append(f.execOpts, opts)
	if f.execOut != "" && s.Stdout != nil {
		fmt.Fprint(s.Stdout, f.execOut)
	}
	return f.execCode, nil
}

type trackerFunc func(cleanup.Resource) error

func (f trackerFunc) Track(r cleanup.Resource) error { return f(r) }

func TestCreateAndStartBuildsSpecAndTracksBeforeStart(t *testing.T) {
	engine := &fakeEngine{}
	var tracked []cleanup.Resource
	m := &Manager{Engine: engine, Tracker: trackerFunc(func(r cleanup.Resource) error {
		engine.calls = append(engine.calls, "track")
		tracked = append(tracked, r)
		return nil
	})}

	id, err := m.CreateAndStart(context.Background(), Options{
		Name:       "bubble-app",
		Image:      "bubble:0123456789ab",
		ProjectDir: "/home/me/app",
		UID:        501,
		GID:        20,
		Env:        []string{"DB_HOST=mysql"},
		Secrets:    []string{"CLAUDE_CODE_OAUTH_TOKEN=tok"},
		Network:    "bubble-app",
		Mounts:     []configstore.Mount{{Host: "/home/me/.zshrc", Container: "/home/dev/.zshrc"}},
		Labels:     map[string]string{docker.LabelProject: "app"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "cid" {
		t.Fatalf("unexpected id %s", id)
	}
	if strings.Join(engine.calls, ",") != "create,track,start" {
		t.Fatalf("unexpected call order %v", engine.calls)
	}
	if len(tracked) != 1 || tracked[0].Role != cleanup.RolePrimary || tracked[0].ID != "cid" {
		t.Fatalf("unexpected tracked %+v", tracked)
	}

	spec := engine.spec
	if spec.User != "501:20" || spec.WorkDir != "/workspace" || !spec.Init {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if strings.Join(spec.Cmd, " ") != "sleep infinity" {
		t.Fatalf("unexpected cmd %v", spec.Cmd)
	}
	if strings.Join(spec.Binds, ",") != "/home/me/app:/workspace,/home/me/.zshrc:/home/dev/.zshrc:ro" {
		t.Fatalf("unexpected binds %v", spec.Binds)
	}
	if spec.Env[0] != "HOME=/home/dev" || spec.Env[1] != "DB_HOST=mysql" {
		t.Fatalf("unexpected env %v", spec.Env)
	}
	for _, e := range spec.Env {
		if strings.Contains(e, "tok") {
			t.Fatalf("secret leaked into visible env: %v", spec.Env)
		}
	}
	if spec.SecretEnv[0] != "CLAUDE_CODE_OAUTH_TOKEN=tok" {
		t.Fatalf("secret missing %v", spec.SecretEnv)
	}
	if spec.Aliases[0] != "bubble-app" || spec.Labels[docker.LabelRole] != "primary" {
		t.Fatalf("unexpected alias/labels %v %v", spec.Aliases, spec.Labels)
	}
}

func TestCreateAndStartAfterDrainRemovesContainer(t *testing.T) {
	engine := &fakeEngine{}
	m := &Manager{Engine: engine}
	coord := cleanup.New(m, nil, nil)
	m.Tracker = coord
	if err := coord.Cleanup(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := m.CreateAndStart(context.Background(), Options{Name: "bubble-app", Image: "bubble:x", ProjectDir: "/home/me/app"})
	if !errors.Is(err, cleanup.ErrDrained) {
		t.Fatalf("expected ErrDrained, got %v", err)
	}
	want := "create,stop cid " + StopGrace.String() + ",rm cid"
	if got := strings.Join(engine.calls, ","); got != want {
		t.Fatalf("calls = %q, want %q", got, want)
	}
}

func TestCreateAndStartStartFailureStillTracked(t *testing.T) {
	engine := &fakeEngine{startErr: errors.New("port is already allocated")}
	tracked := 0
	m := &Manager{Engine: engine, Tracker: trackerFunc(func(cleanup.Resource) error { tracked++; return nil })}

	_, err := m.CreateAndStart(context.Background(), Options{Name: "x", Image: "y", ProjectDir: "/p"})
	if err == nil || !strings.Contains(err.Error(), "already allocated") {
		t.Fatalf("expected start error, got %v", err)
	}
	if tracked != 1 {
		t.Fatal("created container must be tracked even when start fails")
	}
}

func TestAttachAndExecModes(t *testing.T) {
	engine := &fakeEngine{execCode: 7}
	m := &Manager{Engine: engine, TTY: true}

	code, err := m.AttachInteractive(context.Background(), "cid", []string{"zsh"})
	if err != nil || code != 7 {
		t.Fatalf("AttachInteractive = %d, %v", code, err)
	}
	if _, err := m.ExecStreaming(context.Background(), "cid", []string{"make", "test"}); err != nil {
		t.Fatal(err)
	}
	if !engine.execOpts[0].Interactive || !engine.execOpts[0].TTY {
		t.Fatalf("interactive exec should allocate tty: %+v", engine.execOpts[0])
	}
	if engine.execOpts[1].Interactive || engine.execOpts[1].TTY {
		t.Fatalf("streaming exec must not allocate tty: %+v", engine.execOpts[1])
	}
}

func TestExecSilentReportsFailure(t *testing.T) {
	engine := &fakeEngine{execCode: 2, execOut: "npm ERR! missing script\n"}
	m := &Manager{Engine: engine}

	err := m.ExecSilent(context.Background(), "cid", "npm run seed")
	if err == nil || !strings.Contains(err.Error(), "exit status 2") || !strings.Contains(err.Error(), "missing script") {
		t.Fatalf("unexpected error %v", err)
	}
	if got := strings.Join(engine.execOpts[0].Cmd, " "); got != "sh -c npm run seed" {
		t.Fatalf("unexpected cmd %s", got)
	}
}

func TestStopAndRemoveSwallowsStopErrors(t *testing.T) {
	engine := &fakeEngine{stopErr: errors.New("container not running")}
	var buf bytes.Buffer
	m := &Manager{Engine: engine, Logger: log.New(&buf, "", 0)}

	if err := m.StopAndRemove(context.Background(), "cid"); err != nil {
		t.Fatalf("stop error should be swallowed, got %v", err)
	}
	if strings.Join(engine.calls, ",") != "stop cid 5s,rm cid" {
		t.Fatalf("unexpected calls %v", engine.calls)
	}
	if buf.Len() != 0 {
		t.Fatalf("stop failure should only log in verbose mode, got %q", buf.String())
	}

	engine.removeErr = errors.New("device busy")
	if err := m.StopAndRemove(context.Background(), "cid"); err == nil {
		t.Fatal("remove failure must be reported")
	}

	engine.removeErr = fmt.Errorf("%w: gone", docker.ErrNotFound)
	if err := m.StopAndRemove(context.Background(), "cid"); err != nil {
		t.Fatalf("missing container counts as removed, got %v", err)
	}
}
