package rules

import (
	"context"
	"strings"
	"testing"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/executor"
)

func TestAddFormAndExistenceFormShareSelectors(t *testing.T) {
	r := Rule{
		Chain:     "vpc-myvpc",
		Selectors: []string{"-s", "10.0.1.0/24", "-p", "tcp", "--dport", "80"},
		Verdict:   "ACCEPT",
		Comment:   "vpcctl:myvpc:public",
	}

	addName, addArgs := r.AddForm()
	existName, existArgs := r.ExistenceForm()

	if addName != "iptables" || existName != "iptables" {
		t.Fatalf("expected host-scope iptables invocation")
	}
	if addArgs[0] != "-A" || existArgs[0] != "-C" {
		t.Fatalf("expected -A and -C verbs, got %v / %v", addArgs, existArgs)
	}
	if strings.Join(addArgs[1:], " ") != strings.Join(existArgs[1:], " ") {
		t.Fatalf("expected add and existence forms to differ only in verb: %v / %v", addArgs, existArgs)
	}
	if !strings.Contains(strings.Join(addArgs, " "), "vpcctl:myvpc:public") {
		t.Fatalf("expected comment in add form: %v", addArgs)
	}
}

func TestNamespaceScopedRuleWrapsWithIPNetnsExec(t *testing.T) {
	r := Rule{
		Namespace: "ns-myvpc-public",
		Chain:     "INPUT",
		Selectors: []string{"-p", "tcp", "--dport", "22"},
		Verdict:   "DROP",
		Comment:   "vpcctl:myvpc:public:policy",
	}
	name, args := r.AddForm()
	if name != "ip" {
		t.Fatalf("expected ip command for namespace-scoped rule, got %q", name)
	}
	want := []string{"netns", "exec", "ns-myvpc-public", "iptables"}
	for i, w := range want {
		if args[i] != w {
			t.Fatalf("expected prefix %v, got %v", want, args[:len(want)])
		}
	}
}

func TestToDeleteVerbSwapsAppendForDelete(t *testing.T) {
	args := []string{"-A", "FORWARD", "-s", "10.0.0.0/24", "-j", "ACCEPT"}
	got := toDeleteVerb(args)
	if got[0] != "-D" {
		t.Fatalf("expected -D, got %v", got)
	}
}

func TestStripCommentRemovesCommentTuple(t *testing.T) {
	args := []string{"-D", "FORWARD", "-s", "10.0.0.0/24", "-m", "comment", "--comment", "vpcctl:x", "-j", "ACCEPT"}
	got := stripComment(args)
	for _, tok := range got {
		if tok == "comment" || tok == "--comment" {
			t.Fatalf("expected comment tuple stripped, got %v", got)
		}
	}
	if len(got) != len(args)-4 {
		t.Fatalf("expected 4 tokens removed, got %d -> %d", len(args), len(got))
	}
}

func TestManagerDeleteEmptyFormIsNoop(t *testing.T) {
	e := executor.New(executor.ModeDry, nil, 0)
	m := NewManager(e)
	if err := m.Delete(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error for empty add-form, got %v", err)
	}
}
