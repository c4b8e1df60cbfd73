// Package verify implements the Verifier (C8): a read-only cross-check
// between live kernel objects bearing the Name Encoder's prefixes and the
// fields of every VPC document in the store. It mutates nothing.
package verify

import (
	"context"
	"sort"
	"strings"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/executor"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
)

// CommandRunner is the read-only subset of the Command Executor (C2) the
// Verifier needs to enumerate live kernel state.
type CommandRunner interface {
	Probe(ctx context.Context, name string, args ...string) (executor.Result, error)
}

// reservedPrefixes are the Name Encoder's role prefixes (pkg/names), listed
// here rather than imported to keep the Verifier a pure string/exec
// consumer independent of naming internals.
var reservedPrefixes = []string{"br-", "ns-", "vpc-", "v-", "pv-"}

// Report is the result of one verification pass.
type Report struct {
	// Accounted are live kernel object names matched to some VPC document field.
	Accounted []string
	// Orphans are live-but-unaccounted or accounted-but-missing-live object names.
	Orphans []string
}

// Verifier cross-checks the store against live kernel state.
type Verifier struct {
	Exec  CommandRunner
	Store *store.Store
}

// New builds a Verifier.
func New(exec CommandRunner, st *store.Store) *Verifier {
	return &Verifier{Exec: exec, Store: st}
}

// Run enumerates live namespaces, bridges, and filter chains matching the
// core's naming conventions, cross-checks each against every VPC document,
// and reports accounted and orphaned resources.
func (v *Verifier) Run(ctx context.Context) (*Report, error) {
	live, err := v.liveObjects(ctx)
	if err != nil {
		return nil, err
	}

	names, err := v.Store.List()
	if err != nil {
		return nil, err
	}
	documented := make(map[string]bool)
	for _, name := range names {
		doc, ok, err := v.Store.Load(name)
		if err != nil || !ok {
			continue
		}
		for _, obj := range documentedObjects(doc) {
			documented[obj] = true
		}
	}

	report := &Report{}
	seen := make(map[string]bool)
	for _, obj := range live {
		seen[obj] = true
		if documented[obj] {
			report.Accounted = append(report.Accounted, obj)
		} else {
			report.Orphans = append(report.Orphans, obj)
		}
	}
	for obj := range documented {
		if !seen[obj] {
			report.Orphans = append(report.Orphans, obj)
		}
	}

	sort.Strings(report.Accounted)
	sort.Strings(report.Orphans)
	return report, nil
}

// documentedObjects returns every kernel identifier a VPC document claims to own.
func documentedObjects(doc *store.Document) []string {
	out := []string{doc.Bridge, doc.Chain}
	for _, s := range doc.Subnets {
		out = append(out, s.NS, s.Veth.BridgeSide, s.Veth.NSSide)
	}
	for _, p := range doc.Peers {
		out = append(out, p.VethLocal)
	}
	return out
}

func hasReservedPrefix(name string) bool {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func (v *Verifier) liveObjects(ctx context.Context) ([]string, error) {
	var out []string

	nsOut, err := v.Exec.Probe(ctx, "ip", "netns", "list")
	if err == nil {
		for _, line := range strings.Split(nsOut.Stdout, "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if hasReservedPrefix(fields[0]) {
				out = append(out, fields[0])
			}
		}
	}

	linkOut, err := v.Exec.Probe(ctx, "ip", "-o", "link", "show")
	if err == nil {
		for _, line := range strings.Split(linkOut.Stdout, "\n") {
			name := parseLinkName(line)
			if name != "" && hasReservedPrefix(name) {
				out = append(out, name)
			}
		}
	}

	chainOut, err := v.Exec.Probe(ctx, "iptables", "-S")
	if err == nil {
		for _, line := range strings.Split(chainOut.Stdout, "\n") {
			fields := strings.Fields(line)
			if len(fields) < 2 || fields[0] != "-N" {
				continue
			}
			if hasReservedPrefix(fields[1]) {
				out = append(out, fields[1])
			}
		}
	}

	return out, nil
}

// parseLinkName extracts the interface name from one line of `ip -o link
// show` output, e.g. "3: br-myvpc: <BROADCAST,..." -> "br-myvpc".
func parseLinkName(line string) string {
	idx := strings.Index(line, ": ")
	if idx < 0 {
		return ""
	}
	rest := line[idx+2:]
	end := strings.Index(rest, ":")
	if end < 0 {
		return ""
	}
	name := rest[:end]
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	return strings.TrimSpace(name)
}
