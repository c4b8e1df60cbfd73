package verify

import (
	"context"
	"testing"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/executor"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
)

// fakeProbe returns canned ip/iptables output so Run can be tested without
// a real kernel, in the teacher's style of hand-written call-recording fakes.
type fakeProbe struct {
	nsList   string
	linkShow string
	iptables string
}

func (f *fakeProbe) Probe(ctx context.Context, name string, args ...string) (executor.Result, error) {
	switch name {
	case "ip":
		if len(args) > 0 && args[0] == "netns" {
			return executor.Result{Stdout: f.nsList}, nil
		}
		return executor.Result{Stdout: f.linkShow}, nil
	case "iptables":
		return executor.Result{Stdout: f.iptables}, nil
	}
	return executor.Result{}, nil
}

func TestRunAccountsDocumentedObjects(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	doc := store.NewDocument("myvpc", "10.0.0.0/24")
	doc.Subnets = append(doc.Subnets, store.SubnetRecord{
		Name: "public",
		CIDR: "10.0.0.0/28",
		NS:   "ns-myvpc-public",
		Veth: store.VethPair{BridgeSide: "v-myvpc-pub-br", NSSide: "v-myvpc-pub-ns"},
	})
	if err := st.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	probe := &fakeProbe{
		nsList:   "ns-myvpc-public (id: 0)\n",
		linkShow: "2: " + doc.Bridge + ": <BROADCAST,UP> mtu 1500\n3: v-myvpc-pub-br@if4: <BROADCAST> mtu 1500\n4: eth0: <BROADCAST> mtu 1500\n",
		iptables: "-P FORWARD ACCEPT\n-N " + doc.Chain + "\n-A FORWARD -j " + doc.Chain + "\n",
	}
	v := New(probe, st)

	report, err := v.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantAccounted := map[string]bool{
		"ns-myvpc-public": true,
		doc.Bridge:        true,
		"v-myvpc-pub-br":  true,
		doc.Chain:         true,
	}
	if len(report.Accounted) != len(wantAccounted) {
		t.Fatalf("Accounted = %v, want %d entries matching %v", report.Accounted, len(wantAccounted), wantAccounted)
	}
	for _, a := range report.Accounted {
		if !wantAccounted[a] {
			t.Fatalf("unexpected accounted object %q", a)
		}
	}

	found := false
	for _, o := range report.Orphans {
		if o == "v-myvpc-pub-ns" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected v-myvpc-pub-ns (documented but not live) to be reported as an orphan, got %v", report.Orphans)
	}
}

func TestRunIgnoresNonReservedNames(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	probe := &fakeProbe{
		nsList:   "default (id: 0)\n",
		linkShow: "1: lo: <LOOPBACK> mtu 65536\n2: eth0: <BROADCAST> mtu 1500\n",
		iptables: "-P FORWARD ACCEPT\n",
	}
	v := New(probe, st)

	report, err := v.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Accounted) != 0 || len(report.Orphans) != 0 {
		t.Fatalf("expected no reserved-prefix objects, got accounted=%v orphans=%v", report.Accounted, report.Orphans)
	}
}
