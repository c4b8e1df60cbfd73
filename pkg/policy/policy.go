// Package policy implements the Policy Compiler (C6): it translates a
// declarative ingress/egress JSON policy document into an ordered sequence
// of namespace-scoped filter-rule additions, following the teacher's
// config.Parse pattern of strict JSON decoding plus field-by-field
// validation, generalized from the original CNI network config parser to
// policy documents.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/rules"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

// Rule is one ingress/egress entry of a policy document.
type Rule struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Action   string `json:"action"`
}

// Document is the policy document accepted by apply-policy (spec §6).
type Document struct {
	Subnet  string `json:"subnet"`
	Ingress []Rule `json:"ingress"`
	Egress  []Rule `json:"egress"`
}

var validProtocols = map[string]bool{"tcp": true, "udp": true, "icmp": true}
var validActions = map[string]bool{"allow": true, "deny": true}

// Parse strictly decodes a policy document, rejecting unknown fields, and
// validates its schema (spec §6: "Unknown fields are rejected").
func Parse(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	doc := &Document{}
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("%v: %w", err, vpcerr.ErrPolicyMalformed)
	}
	if doc.Subnet == "" {
		return nil, fmt.Errorf("subnet is required: %w", vpcerr.ErrPolicyMalformed)
	}
	for _, side := range [][]Rule{doc.Ingress, doc.Egress} {
		for _, r := range side {
			if !validProtocols[r.Protocol] {
				return nil, fmt.Errorf("protocol %q is invalid: %w", r.Protocol, vpcerr.ErrPolicyMalformed)
			}
			if !validActions[r.Action] {
				return nil, fmt.Errorf("action %q is invalid: %w", r.Action, vpcerr.ErrPolicyMalformed)
			}
			if r.Protocol != "icmp" && r.Port <= 0 {
				return nil, fmt.Errorf("port is required for protocol %q: %w", r.Protocol, vpcerr.ErrPolicyMalformed)
			}
		}
	}
	return doc, nil
}

// Compile resolves the policy's subnet against the VPC document and
// produces the ordered sequence of filter rules to add. Ingress entries
// target the subnet namespace's INPUT chain, egress entries its OUTPUT
// chain; emission order follows input order, so earlier entries win ties
// (first match wins is an iptables evaluation-order property, preserved
// here by appending in order).
func Compile(vpcName string, doc *store.Document, p *Document) ([]rules.Rule, error) {
	subnet, ok := findSubnet(doc, p.Subnet)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p.Subnet, vpcerr.ErrNoMatchingSubnet)
	}

	var out []rules.Rule
	out = append(out, compileSide(vpcName, subnet.Name, subnet.NS, "INPUT", "ingress", p.Ingress)...)
	out = append(out, compileSide(vpcName, subnet.Name, subnet.NS, "OUTPUT", "egress", p.Egress)...)
	return out, nil
}

func compileSide(vpcName, subnetName, nsName, chain, direction string, side []Rule) []rules.Rule {
	out := make([]rules.Rule, 0, len(side))
	for i, r := range side {
		selectors := []string{"-p", r.Protocol}
		if r.Protocol != "icmp" {
			selectors = append(selectors, "--dport", fmt.Sprintf("%d", r.Port))
		}
		verdict := "DROP"
		if r.Action == "allow" {
			verdict = "ACCEPT"
		}
		out = append(out, rules.Rule{
			Namespace: nsName,
			Chain:     chain,
			Selectors: selectors,
			Verdict:   verdict,
			Comment:   fmt.Sprintf("vpcctl:%s:%s:policy:%s:%d", vpcName, subnetName, direction, i),
		})
	}
	return out
}

func findSubnet(doc *store.Document, cidr string) (store.SubnetRecord, bool) {
	for _, s := range doc.Subnets {
		if s.CIDR == cidr {
			return s, true
		}
	}
	return store.SubnetRecord{}, false
}

// DefaultSubnetPolicy returns the unconditional default policy applied by
// add-subnet (spec.md's Open Questions: "currently describes it as
// unconditional"): allow tcp/80 and tcp/443 ingress, deny tcp/22 ingress,
// empty egress.
func DefaultSubnetPolicy(subnetCIDR string) *Document {
	return &Document{
		Subnet: subnetCIDR,
		Ingress: []Rule{
			{Port: 80, Protocol: "tcp", Action: "allow"},
			{Port: 443, Protocol: "tcp", Action: "allow"},
			{Port: 22, Protocol: "tcp", Action: "deny"},
		},
		Egress: []Rule{},
	}
}
