package policy

import (
	"strings"
	"testing"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

func TestParseRejectsUnknownFields(t *testing.T) {
	raw := []byte(`{"subnet":"10.10.1.0/24","ingress":[],"egress":[],"bogus":1}`)
	_, err := Parse(raw)
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParseRejectsInvalidProtocol(t *testing.T) {
	raw := []byte(`{"subnet":"10.10.1.0/24","ingress":[{"port":80,"protocol":"sctp","action":"allow"}],"egress":[]}`)
	_, err := Parse(raw)
	if err == nil {
		t.Fatalf("expected error for invalid protocol")
	}
}

func TestParseIcmpIgnoresPort(t *testing.T) {
	raw := []byte(`{"subnet":"10.10.1.0/24","ingress":[{"protocol":"icmp","action":"allow"}],"egress":[]}`)
	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Ingress[0].Protocol != "icmp" {
		t.Fatalf("unexpected doc: %+v", doc)
	}
}

func TestCompileProducesOrderedRulesForMatchingSubnet(t *testing.T) {
	doc := &store.Document{
		Name: "myvpc",
		Subnets: []store.SubnetRecord{
			{Name: "public", CIDR: "10.10.1.0/24", NS: "ns-myvpc-public"},
		},
	}
	p := &Document{
		Subnet: "10.10.1.0/24",
		Ingress: []Rule{
			{Port: 80, Protocol: "tcp", Action: "allow"},
			{Port: 22, Protocol: "tcp", Action: "deny"},
		},
		Egress: []Rule{},
	}

	out, err := Compile("myvpc", doc, p)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(out))
	}
	if out[0].Verdict != "ACCEPT" || out[1].Verdict != "DROP" {
		t.Fatalf("unexpected verdicts: %+v", out)
	}
	if out[0].Namespace != "ns-myvpc-public" {
		t.Fatalf("expected rules scoped to subnet namespace, got %+v", out[0])
	}
	if !strings.Contains(out[0].Comment, "vpcctl:myvpc:public:policy:ingress:0") {
		t.Fatalf("unexpected comment: %s", out[0].Comment)
	}
}

func TestCompileNoMatchingSubnet(t *testing.T) {
	doc := &store.Document{Name: "myvpc"}
	p := &Document{Subnet: "10.99.0.0/24"}
	_, err := Compile("myvpc", doc, p)
	if err == nil {
		t.Fatalf("expected ErrNoMatchingSubnet")
	}
	if !isNoMatchingSubnet(err) {
		t.Fatalf("expected ErrNoMatchingSubnet, got %v", err)
	}
}

func isNoMatchingSubnet(err error) bool {
	return err != nil && strings.Contains(err.Error(), vpcerr.ErrNoMatchingSubnet.Error())
}

func TestDefaultSubnetPolicyShape(t *testing.T) {
	p := DefaultSubnetPolicy("10.10.1.0/24")
	if len(p.Ingress) != 3 || len(p.Egress) != 0 {
		t.Fatalf("unexpected default policy: %+v", p)
	}
}
