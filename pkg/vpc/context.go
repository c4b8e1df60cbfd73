// Package vpc implements the VPC Orchestrator (C7): the high-level
// create/add-subnet/enable-nat/peer/apply-policy/deploy-app/stop-app/
// delete/cleanup-all/list/inspect operations, composing the Name Encoder,
// Command Executor, Filter-Rule Manager, Network Primitives, Policy
// Compiler, and Metadata Store.
//
// Per the Design Notes' re-architecture of the original's global mutable
// state (singleton data-dir/dry-run constants), every operation is a
// method on an Orchestrator built from one explicit Context value.
package vpc

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/executor"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/netprim"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/rules"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpclog"
	"github.com/rs/zerolog"
)

// DefaultDataDir is the default metadata store location (spec §6).
const DefaultDataDir = "./.vpcctl_data"

// Context carries every cross-cutting setting an operation needs,
// replacing the original's global dry-run flag and data-dir constant.
type Context struct {
	DataDir string
	DryRun  bool
	Trace   io.Writer
	Timeout time.Duration
}

// NetOps is the subset of Network Primitives (C5) the Orchestrator drives,
// narrowed to an interface so operations can be tested against a fake the
// way the teacher's Plugin tests netops.NetOps with a mockNetOps.
type NetOps interface {
	CreateBridge(ctx context.Context, name string) ([][]string, error)
	DeleteBridge(ctx context.Context, name string) ([][]string, error)
	LinkUp(ctx context.Context, name string) ([][]string, error)
	AssignBridgeAddress(ctx context.Context, name string, addr *net.IPNet) ([][]string, error)
	CreateNamespace(ctx context.Context, name string) ([][]string, error)
	DeleteNamespace(ctx context.Context, name string) ([][]string, error)
	LoopbackUp(ctx context.Context, nsName string) ([][]string, error)
	CreateVethPair(ctx context.Context, aName, bName string, mtu int) ([][]string, error)
	DeleteVeth(ctx context.Context, name string) ([][]string, error)
	AttachToBridge(ctx context.Context, vethName, bridgeName string) ([][]string, error)
	MoveToNamespace(ctx context.Context, linkName, nsName string) ([][]string, error)
	LinkUpInNamespace(ctx context.Context, nsName, linkName string) ([][]string, error)
	DeleteLinkInNamespace(ctx context.Context, nsName, linkName string) ([][]string, error)
	AssignAddress(ctx context.Context, nsName, ifName string, addr *net.IPNet) ([][]string, error)
	AddDefaultRoute(ctx context.Context, nsName, ifName string, gateway net.IP) ([][]string, error)
	EnableIPv4Forwarding(ctx context.Context) ([][]string, error)
	StartInNamespace(ctx context.Context, nsName, logPath, command string, args ...string) (int, error)
}

// RuleManager is the subset of the Filter-Rule Manager (C3) the
// Orchestrator drives.
type RuleManager interface {
	Add(ctx context.Context, r rules.Rule) ([]string, error)
	Delete(ctx context.Context, addForm []string) error
}

// CommandRunner is the subset of the Command Executor (C2) the
// Orchestrator calls directly, for operations (chain create/flush/delete,
// the Verifier's live-state enumeration) that have no dedicated
// Network-Primitives or Filter-Rule-Manager method.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (executor.Result, error)
	Probe(ctx context.Context, name string, args ...string) (executor.Result, error)
}

// Orchestrator implements C7 over the components it composes.
type Orchestrator struct {
	Store *store.Store
	Exec  CommandRunner
	Rules RuleManager
	Net   NetOps

	log zerolog.Logger
}

// New builds an Orchestrator from a Context, creating the data directory if needed.
func New(ctx Context) (*Orchestrator, error) {
	dataDir := ctx.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	st, err := store.New(dataDir)
	if err != nil {
		return nil, err
	}

	mode := executor.ModeLive
	if ctx.DryRun {
		mode = executor.ModeDry
	}
	exec := executor.New(mode, ctx.Trace, ctx.Timeout)

	return &Orchestrator{
		Store: st,
		Exec:  exec,
		Rules: rules.NewManager(exec),
		Net:   netprim.New(exec),
		log:   vpclog.For("orchestrator"),
	}, nil
}
