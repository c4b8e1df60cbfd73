// Package rules implements the Filter-Rule Manager (C3): it adds, probes,
// and reverses packet-filter rules in the host table and in per-subnet
// namespace tables, tagging every rule it adds with a stable
// "vpcctl:<info>" comment that is part of the rule's identity.
//
// The manager keeps no in-process rule state; the kernel is the source of
// truth and the VPC document's host_iptables log is the replay log for
// teardown. This mirrors the Design Notes' re-architecture of the
// original's string-based iptables commands into a typed record whose
// existence/delete forms are methods, not string surgery.
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/executor"
)

// Rule is a tokenized packet-filter rule. Selectors carries everything
// between the chain and the comment/verdict, e.g. []string{"-s",
// "10.0.0.0/24", "-p", "tcp", "--dport", "80"}.
type Rule struct {
	// Namespace is the target network namespace name, or "" for the host.
	Namespace string
	// Table is the iptables table, e.g. "filter" or "nat". Empty means the
	// default "filter" table.
	Table string
	// Chain is the chain name, e.g. "FORWARD", "vpc-myvpc", "POSTROUTING".
	Chain string
	// Selectors are the match tokens between the chain and verdict.
	Selectors []string
	// Verdict is the rule's target, e.g. "ACCEPT", "DROP", "MASQUERADE".
	Verdict string
	// Comment is the stable "vpcctl:<info>" tag that is part of the rule's identity.
	Comment string
}

func (r Rule) args(verb string, includeComment bool) []string {
	args := make([]string, 0, len(r.Selectors)+8)
	if r.Table != "" {
		args = append(args, "-t", r.Table)
	}
	args = append(args, verb, r.Chain)
	args = append(args, r.Selectors...)
	if includeComment && r.Comment != "" {
		args = append(args, "-m", "comment", "--comment", r.Comment)
	}
	args = append(args, "-j", r.Verdict)
	return args
}

// wrap prefixes the iptables invocation with "ip netns exec <ns>" when the
// rule targets a namespace, returning the command name and its arguments.
func (r Rule) wrap(args []string) (string, []string) {
	if r.Namespace == "" {
		return "iptables", args
	}
	full := append([]string{"netns", "exec", r.Namespace, "iptables"}, args...)
	return "ip", full
}

// AddForm returns the exact tokens used to append the rule.
func (r Rule) AddForm() (string, []string) { return r.wrap(r.args("-A", true)) }

// ExistenceForm returns the tokens that check whether the rule is present.
func (r Rule) ExistenceForm() (string, []string) { return r.wrap(r.args("-C", true)) }

// Manager applies and reverses Rules through an Executor.
type Manager struct {
	Exec *executor.Executor
}

// NewManager builds a Manager bound to the given Executor.
func NewManager(exec *executor.Executor) *Manager {
	return &Manager{Exec: exec}
}

// Add probes for the rule's existence; if present it is a no-op, if absent
// it is added. Either way the exact tokenized add-form is returned for the
// caller to persist (spec §4.3: "the exact tokenized add-form is returned
// to the caller for persistence in host_iptables").
func (m *Manager) Add(ctx context.Context, r Rule) ([]string, error) {
	existName, existArgs := r.ExistenceForm()
	addName, addArgs := r.AddForm()
	recorded := join(addName, addArgs)

	if _, err := m.Exec.Probe(ctx, existName, existArgs...); err == nil {
		return recorded, nil
	}

	if _, err := m.Exec.Run(ctx, addName, addArgs...); err != nil {
		return nil, fmt.Errorf("add rule %s: %w", r.Comment, err)
	}
	return recorded, nil
}

// Delete reverses a recorded add-form: it swaps the append/insert verb for
// the delete verb and attempts the exact form first. On failure it retries
// with the comment annotation stripped, for rules whose comment token was
// hand-edited away out of band. Failure to delete is returned so callers
// (delete/cleanup-all) can downgrade it to a warning; it is never fatal by
// itself.
func (m *Manager) Delete(ctx context.Context, addForm []string) error {
	if len(addForm) == 0 {
		return nil
	}
	name, args := addForm[0], addForm[1:]
	delArgs := toDeleteVerb(args)

	if _, err := m.Exec.Run(ctx, name, delArgs...); err == nil {
		return nil
	}

	stripped := stripComment(delArgs)
	if _, err := m.Exec.Run(ctx, name, stripped...); err != nil {
		return fmt.Errorf("delete rule %s: %w", strings.Join(addForm, " "), err)
	}
	return nil
}

func toDeleteVerb(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i, tok := range out {
		if tok == "-A" || tok == "-I" {
			out[i] = "-D"
			break
		}
	}
	return out
}

func stripComment(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "-m" && i+3 < len(args) && args[i+1] == "comment" && args[i+2] == "--comment" {
			i += 3
			continue
		}
		out = append(out, args[i])
	}
	return out
}

func join(name string, args []string) []string {
	out := make([]string, 0, len(args)+1)
	out = append(out, name)
	out = append(out, args...)
	return out
}
