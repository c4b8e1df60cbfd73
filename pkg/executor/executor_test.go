package executor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

func TestRunDryDoesNotExecute(t *testing.T) {
	var trace bytes.Buffer
	e := New(ModeDry, &trace, 0)

	res, err := e.Run(context.Background(), "rm", "-rf", "/should/not/run")
	if err != nil {
		t.Fatalf("dry-run should never fail: %v", err)
	}
	if !strings.Contains(trace.String(), "rm -rf /should/not/run") {
		t.Fatalf("expected traced command, got %q", trace.String())
	}
	if len(res.Args) != 3 {
		t.Fatalf("expected args recorded, got %v", res.Args)
	}
}

func TestRunLiveSuccess(t *testing.T) {
	e := New(ModeLive, nil, 0)
	res, err := e.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "hello" {
		t.Fatalf("expected stdout hello, got %q", res.Stdout)
	}
}

func TestRunLiveFailureClassifiesErrExec(t *testing.T) {
	e := New(ModeLive, nil, 0)
	_, err := e.Run(context.Background(), "false")
	if !errors.Is(err, vpcerr.ErrExec) {
		t.Fatalf("expected ErrExec, got %v", err)
	}
}

func TestProbeRunsEvenInDryMode(t *testing.T) {
	e := New(ModeDry, &bytes.Buffer{}, 0)
	res, err := e.Probe(context.Background(), "echo", "probe-me")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Stdout != "probe-me" {
		t.Fatalf("expected probe to actually run, got %q", res.Stdout)
	}
}

func TestStartDetachedDryModeNoSpawn(t *testing.T) {
	e := New(ModeDry, &bytes.Buffer{}, 0)
	pid, err := e.StartDetached(context.Background(), "/tmp/does-not-matter.log", "sleep", "100")
	if err != nil {
		t.Fatalf("StartDetached dry: %v", err)
	}
	if pid != 0 {
		t.Fatalf("expected pid 0 in dry mode, got %d", pid)
	}
}
