package vpc

import (
	"context"
	"net"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/executor"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/rules"
)

// fakeNet is a no-op NetOps fake recording every call it received, in the
// style of the teacher's mockNetOps fake (originally in plugin_test.go).
type fakeNet struct {
	calls   []string
	failOn  string
	pidNext int
}

func (f *fakeNet) record(name string) error {
	f.calls = append(f.calls, name)
	if f.failOn != "" && name == f.failOn {
		return errBoom
	}
	return nil
}

func (f *fakeNet) CreateBridge(ctx context.Context, name string) ([][]string, error) {
	return nil, f.record("CreateBridge:" + name)
}
func (f *fakeNet) DeleteBridge(ctx context.Context, name string) ([][]string, error) {
	return nil, f.record("DeleteBridge:" + name)
}
func (f *fakeNet) LinkUp(ctx context.Context, name string) ([][]string, error) {
	return nil, f.record("LinkUp:" + name)
}
func (f *fakeNet) AssignBridgeAddress(ctx context.Context, name string, addr *net.IPNet) ([][]string, error) {
	return nil, f.record("AssignBridgeAddress:" + name)
}
func (f *fakeNet) CreateNamespace(ctx context.Context, name string) ([][]string, error) {
	return nil, f.record("CreateNamespace:" + name)
}
func (f *fakeNet) DeleteNamespace(ctx context.Context, name string) ([][]string, error) {
	return nil, f.record("DeleteNamespace:" + name)
}
func (f *fakeNet) LoopbackUp(ctx context.Context, nsName string) ([][]string, error) {
	return nil, f.record("LoopbackUp:" + nsName)
}
func (f *fakeNet) CreateVethPair(ctx context.Context, aName, bName string, mtu int) ([][]string, error) {
	return nil, f.record("CreateVethPair:" + aName + "/" + bName)
}
func (f *fakeNet) DeleteVeth(ctx context.Context, name string) ([][]string, error) {
	return nil, f.record("DeleteVeth:" + name)
}
func (f *fakeNet) AttachToBridge(ctx context.Context, vethName, bridgeName string) ([][]string, error) {
	return nil, f.record("AttachToBridge:" + vethName + "/" + bridgeName)
}
func (f *fakeNet) MoveToNamespace(ctx context.Context, linkName, nsName string) ([][]string, error) {
	return nil, f.record("MoveToNamespace:" + linkName + "/" + nsName)
}
func (f *fakeNet) LinkUpInNamespace(ctx context.Context, nsName, linkName string) ([][]string, error) {
	return nil, f.record("LinkUpInNamespace:" + nsName + "/" + linkName)
}
func (f *fakeNet) DeleteLinkInNamespace(ctx context.Context, nsName, linkName string) ([][]string, error) {
	return nil, f.record("DeleteLinkInNamespace:" + nsName + "/" + linkName)
}
func (f *fakeNet) AssignAddress(ctx context.Context, nsName, ifName string, addr *net.IPNet) ([][]string, error) {
	return nil, f.record("AssignAddress:" + nsName + "/" + ifName)
}
func (f *fakeNet) AddDefaultRoute(ctx context.Context, nsName, ifName string, gateway net.IP) ([][]string, error) {
	return nil, f.record("AddDefaultRoute:" + nsName + "/" + ifName)
}
func (f *fakeNet) EnableIPv4Forwarding(ctx context.Context) ([][]string, error) {
	return nil, f.record("EnableIPv4Forwarding")
}
func (f *fakeNet) StartInNamespace(ctx context.Context, nsName, logPath, command string, args ...string) (int, error) {
	if err := f.record("StartInNamespace:" + nsName); err != nil {
		return 0, err
	}
	f.pidNext++
	return 10000 + f.pidNext, nil
}

// fakeRules is a RuleManager fake that always succeeds and echoes back a
// synthetic add-form token sequence derived from the rule's comment, so
// tests can assert on what was recorded without a real iptables binary.
type fakeRules struct {
	added   []rules.Rule
	deleted [][]string
	failOn  string
}

func (f *fakeRules) Add(ctx context.Context, r rules.Rule) ([]string, error) {
	f.added = append(f.added, r)
	if f.failOn != "" && r.Comment == f.failOn {
		return nil, errBoom
	}
	name, args := r.AddForm()
	return append([]string{name}, args...), nil
}

func (f *fakeRules) Delete(ctx context.Context, addForm []string) error {
	f.deleted = append(f.deleted, addForm)
	return nil
}

// fakeExec is a CommandRunner fake for the few direct Exec.Run/Probe calls
// (chain create/flush/delete) operations make outside Net and Rules.
type fakeExec struct {
	calls []string
}

func (f *fakeExec) Run(ctx context.Context, name string, args ...string) (executor.Result, error) {
	f.calls = append(f.calls, name)
	return executor.Result{Args: append([]string{name}, args...)}, nil
}

func (f *fakeExec) Probe(ctx context.Context, name string, args ...string) (executor.Result, error) {
	f.calls = append(f.calls, name)
	return executor.Result{Args: append([]string{name}, args...)}, nil
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
