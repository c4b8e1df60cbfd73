//go:build linux

// Package netprim implements the Network Primitives (C5): thin, idempotent
// wrappers over bridge, namespace, veth, address, route, and forwarding
// operations. Create/delete primitives and bridge-address assignment probe
// for the target condition before mutating; LinkUp, AttachToBridge and the
// namespace-scoped address, route and link-up primitives do not probe, and
// instead rely on the command being repeatable or on tolerating a
// "File exists" error. Every primitive returns the command tokens it ran
// so the Orchestrator can record them.
//
// It generalizes the original CNI plugin's netlink helper from
// "one container's veth into one bridge" to the full set of objects one
// VPC/subnet owns, and keeps the teacher's technique of entering a target
// namespace via containernetworking/plugins/pkg/ns.NetNS.Do for operations
// that must run with process-level namespace context (address/route/MAC),
// while namespace-external, purely declarative commands (bridge, veth,
// namespace lifecycle) go straight through the Command Executor.
package netprim

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/containernetworking/plugins/pkg/ns"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/executor"
)

const netnsDir = "/var/run/netns"

// Ops implements the Network Primitives over a Command Executor.
type Ops struct {
	Exec *executor.Executor
}

// New returns Ops bound to the given Executor.
func New(exec *executor.Executor) *Ops {
	return &Ops{Exec: exec}
}

func nsPath(name string) string {
	return netnsDir + "/" + name
}

// --- bridge -----------------------------------------------------------

// CreateBridge creates the bridge device if it does not already exist.
func (o *Ops) CreateBridge(ctx context.Context, name string) ([][]string, error) {
	if o.linkExists(ctx, name) {
		return nil, nil
	}
	args := []string{"link", "add", "name", name, "type", "bridge"}
	if _, err := o.Exec.Run(ctx, "ip", args...); err != nil {
		return nil, fmt.Errorf("create bridge %s: %w", name, err)
	}
	return [][]string{tokens("ip", args)}, nil
}

// DeleteBridge deletes the bridge device if present.
func (o *Ops) DeleteBridge(ctx context.Context, name string) ([][]string, error) {
	return o.deleteLink(ctx, name)
}

// LinkUp brings any host-namespace link up.
func (o *Ops) LinkUp(ctx context.Context, name string) ([][]string, error) {
	args := []string{"link", "set", "dev", name, "up"}
	if _, err := o.Exec.Run(ctx, "ip", args...); err != nil {
		return nil, fmt.Errorf("set %s up: %w", name, err)
	}
	return [][]string{tokens("ip", args)}, nil
}

// AssignBridgeAddress assigns the gateway CIDR to the bridge if not already present.
func (o *Ops) AssignBridgeAddress(ctx context.Context, name string, addr *net.IPNet) ([][]string, error) {
	existing, err := o.Exec.Probe(ctx, "ip", "addr", "show", "dev", name)
	if err != nil {
		return nil, fmt.Errorf("read addresses of %s: %w", name, err)
	}
	if strings.Contains(existing.Stdout, addr.String()) {
		return nil, nil
	}
	args := []string{"addr", "add", addr.String(), "dev", name}
	if _, err := o.Exec.Run(ctx, "ip", args...); err != nil && !isAlreadyExists(err) {
		return nil, fmt.Errorf("assign address to %s: %w", name, err)
	}
	return [][]string{tokens("ip", args)}, nil
}

// --- namespace ----------------------------------------------------------

// CreateNamespace creates a named persistent network namespace if absent.
func (o *Ops) CreateNamespace(ctx context.Context, name string) ([][]string, error) {
	if o.namespaceExists(ctx, name) {
		return nil, nil
	}
	args := []string{"netns", "add", name}
	if _, err := o.Exec.Run(ctx, "ip", args...); err != nil {
		return nil, fmt.Errorf("create namespace %s: %w", name, err)
	}
	return [][]string{tokens("ip", args)}, nil
}

// DeleteNamespace deletes a named network namespace if present.
func (o *Ops) DeleteNamespace(ctx context.Context, name string) ([][]string, error) {
	if !o.namespaceExists(ctx, name) {
		return nil, nil
	}
	args := []string{"netns", "del", name}
	if _, err := o.Exec.Run(ctx, "ip", args...); err != nil {
		return nil, fmt.Errorf("delete namespace %s: %w", name, err)
	}
	return [][]string{tokens("ip", args)}, nil
}

// LoopbackUp brings the loopback interface up inside the named namespace.
func (o *Ops) LoopbackUp(ctx context.Context, nsName string) ([][]string, error) {
	return o.runInNamespace(ctx, nsName, "ip", "link", "set", "dev", "lo", "up")
}

// --- veth -----------------------------------------------------------------

// CreateVethPair creates a veth pair with the given MTU if not already present.
func (o *Ops) CreateVethPair(ctx context.Context, aName, bName string, mtu int) ([][]string, error) {
	if mtu <= 0 {
		mtu = 1500
	}
	if o.linkExists(ctx, aName) {
		return nil, nil
	}

	var out [][]string
	createArgs := []string{"link", "add", aName, "type", "veth", "peer", "name", bName}
	if _, err := o.Exec.Run(ctx, "ip", createArgs...); err != nil {
		return nil, fmt.Errorf("create veth pair %s/%s: %w", aName, bName, err)
	}
	out = append(out, tokens("ip", createArgs))

	for _, side := range []string{aName, bName} {
		mtuArgs := []string{"link", "set", "dev", side, "mtu", strconv.Itoa(mtu)}
		if _, err := o.Exec.Run(ctx, "ip", mtuArgs...); err != nil {
			return out, fmt.Errorf("set mtu on %s: %w", side, err)
		}
		out = append(out, tokens("ip", mtuArgs))
	}
	return out, nil
}

// DeleteVeth deletes a veth pair by deleting its named end (the kernel
// removes the peer automatically).
func (o *Ops) DeleteVeth(ctx context.Context, name string) ([][]string, error) {
	return o.deleteLink(ctx, name)
}

// AttachToBridge attaches a host-side veth end to a bridge and brings it up.
func (o *Ops) AttachToBridge(ctx context.Context, vethName, bridgeName string) ([][]string, error) {
	var out [][]string
	masterArgs := []string{"link", "set", "dev", vethName, "master", bridgeName}
	if _, err := o.Exec.Run(ctx, "ip", masterArgs...); err != nil {
		return nil, fmt.Errorf("attach %s to bridge %s: %w", vethName, bridgeName, err)
	}
	out = append(out, tokens("ip", masterArgs))

	upArgs := []string{"link", "set", "dev", vethName, "up"}
	if _, err := o.Exec.Run(ctx, "ip", upArgs...); err != nil {
		return out, fmt.Errorf("set %s up: %w", vethName, err)
	}
	out = append(out, tokens("ip", upArgs))
	return out, nil
}

// MoveToNamespace moves a host-namespace link into the named network namespace.
func (o *Ops) MoveToNamespace(ctx context.Context, linkName, nsName string) ([][]string, error) {
	if !o.linkExists(ctx, linkName) {
		return nil, nil
	}
	args := []string{"link", "set", "dev", linkName, "netns", nsName}
	if _, err := o.Exec.Run(ctx, "ip", args...); err != nil {
		return nil, fmt.Errorf("move %s to namespace %s: %w", linkName, nsName, err)
	}
	return [][]string{tokens("ip", args)}, nil
}

// RenameAndUpInNamespace renames a link inside a namespace and brings it up,
// mirroring the teacher's PrepareContainerLink.
func (o *Ops) RenameAndUpInNamespace(ctx context.Context, nsName, currentName, targetName string) ([][]string, error) {
	target, err := ns.GetNS(nsPath(nsName))
	if err != nil {
		return nil, fmt.Errorf("open namespace %s: %w", nsName, err)
	}
	defer target.Close()

	var out [][]string
	if err := target.Do(func(_ ns.NetNS) error {
		renameArgs := []string{"link", "set", "dev", currentName, "name", targetName}
		if _, err := o.Exec.Run(ctx, "ip", renameArgs...); err != nil {
			return fmt.Errorf("rename %s to %s: %w", currentName, targetName, err)
		}
		out = append(out, tokens("ip", renameArgs))

		upArgs := []string{"link", "set", "dev", targetName, "up"}
		if _, err := o.Exec.Run(ctx, "ip", upArgs...); err != nil {
			return fmt.Errorf("set %s up: %w", targetName, err)
		}
		out = append(out, tokens("ip", upArgs))
		return nil
	}); err != nil {
		return out, err
	}
	return out, nil
}

// LinkUpInNamespace brings an existing link up inside the named namespace.
func (o *Ops) LinkUpInNamespace(ctx context.Context, nsName, linkName string) ([][]string, error) {
	return o.runInNamespace(ctx, nsName, "ip", "link", "set", "dev", linkName, "up")
}

// DeleteLinkInNamespace deletes a link inside the named namespace if present.
func (o *Ops) DeleteLinkInNamespace(ctx context.Context, nsName, linkName string) ([][]string, error) {
	return o.runInNamespaceTolerant(ctx, nsName, "ip", "link", "del", "dev", linkName)
}

// --- address / route (namespace-scoped) ------------------------------------

// AssignAddress assigns an address inside the named namespace on ifName.
func (o *Ops) AssignAddress(ctx context.Context, nsName, ifName string, addr *net.IPNet) ([][]string, error) {
	return o.runInNamespace(ctx, nsName, "ip", "addr", "add", addr.String(), "dev", ifName)
}

// AddDefaultRoute adds a default route via gateway inside the named namespace.
func (o *Ops) AddDefaultRoute(ctx context.Context, nsName, ifName string, gateway net.IP) ([][]string, error) {
	return o.runInNamespace(ctx, nsName, "ip", "route", "add", "default", "via", gateway.String(), "dev", ifName)
}

// --- host-global ------------------------------------------------------------

// EnableIPv4Forwarding turns on the host-global net.ipv4.ip_forward sysctl.
func (o *Ops) EnableIPv4Forwarding(ctx context.Context) ([][]string, error) {
	existing, err := o.Exec.Probe(ctx, "sysctl", "-n", "net.ipv4.ip_forward")
	if err == nil && strings.TrimSpace(existing.Stdout) == "1" {
		return nil, nil
	}
	args := []string{"-w", "net.ipv4.ip_forward=1"}
	if _, err := o.Exec.Run(ctx, "sysctl", args...); err != nil {
		return nil, fmt.Errorf("enable ipv4 forwarding: %w", err)
	}
	return [][]string{tokens("sysctl", args)}, nil
}

// StartInNamespace launches a detached command inside the named namespace,
// redirecting its output to logPath, and returns its pid. Used by
// deploy-app to start the (externally supplied) workload listener.
func (o *Ops) StartInNamespace(ctx context.Context, nsName, logPath, command string, args ...string) (int, error) {
	target, err := ns.GetNS(nsPath(nsName))
	if err != nil {
		return 0, fmt.Errorf("open namespace %s: %w", nsName, err)
	}
	defer target.Close()

	var pid int
	if err := target.Do(func(_ ns.NetNS) error {
		p, err := o.Exec.StartDetached(ctx, logPath, command, args...)
		pid = p
		return err
	}); err != nil {
		return 0, err
	}
	return pid, nil
}

// --- helpers ----------------------------------------------------------------

func (o *Ops) runInNamespace(ctx context.Context, nsName, name string, args ...string) ([][]string, error) {
	target, err := ns.GetNS(nsPath(nsName))
	if err != nil {
		return nil, fmt.Errorf("open namespace %s: %w", nsName, err)
	}
	defer target.Close()

	var out [][]string
	if err := target.Do(func(_ ns.NetNS) error {
		if _, err := o.Exec.Run(ctx, name, args...); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("%s in namespace %s: %w", strings.Join(args, " "), nsName, err)
		}
		out = append(out, tokens(name, args))
		return nil
	}); err != nil {
		return out, err
	}
	return out, nil
}

func (o *Ops) runInNamespaceTolerant(ctx context.Context, nsName, name string, args ...string) ([][]string, error) {
	target, err := ns.GetNS(nsPath(nsName))
	if err != nil {
		// Namespace already gone: nothing to delete.
		return nil, nil
	}
	defer target.Close()

	var out [][]string
	if err := target.Do(func(_ ns.NetNS) error {
		if _, err := o.Exec.Run(ctx, name, args...); err != nil && !isLinkNotFound(err) {
			return fmt.Errorf("%s in namespace %s: %w", strings.Join(args, " "), nsName, err)
		}
		out = append(out, tokens(name, args))
		return nil
	}); err != nil {
		return out, err
	}
	return out, nil
}

func (o *Ops) deleteLink(ctx context.Context, name string) ([][]string, error) {
	if !o.linkExists(ctx, name) {
		return nil, nil
	}
	args := []string{"link", "del", "dev", name}
	if _, err := o.Exec.Run(ctx, "ip", args...); err != nil {
		if isLinkNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("delete link %s: %w", name, err)
	}
	return [][]string{tokens("ip", args)}, nil
}

func (o *Ops) linkExists(ctx context.Context, name string) bool {
	_, err := o.Exec.Probe(ctx, "ip", "link", "show", "dev", name)
	return err == nil
}

func (o *Ops) namespaceExists(ctx context.Context, name string) bool {
	res, err := o.Exec.Probe(ctx, "ip", "netns", "list")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == name {
			return true
		}
	}
	return false
}

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "File exists")
}

func isLinkNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Cannot find device") || strings.Contains(msg, "does not exist") || strings.Contains(msg, "No such")
}

func tokens(name string, args []string) []string {
	out := make([]string, 0, len(args)+1)
	out = append(out, name)
	out = append(out, args...)
	return out
}
