package vpc

import (
	"context"
	"fmt"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/rules"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpclog"
)

// NATScope selects which subnets enable-nat targets. An explicit, non-empty
// Subnets list always wins. When Subnets is empty, resolution falls back to
// subnets literally named "public" (spec.md's Open Questions heuristic).
type NATScope struct {
	Subnets []string
}

// EnableNAT implements enable-nat(vpc, interface, scope): for each targeted
// subnet it installs a MASQUERADE rule in the nat table's POSTROUTING chain
// matching the subnet's CIDR as source and the given egress interface, plus
// a FORWARD-chain accept rule for traffic from the subnet's CIDR leaving
// through that interface. The rules match on source CIDR, not on the VPC
// bridge, and no rule is added for the return direction.
func (o *Orchestrator) EnableNAT(ctx context.Context, vpcName, iface string, scope NATScope) (*store.Document, error) {
	release, err := o.Store.Lock(vpcName)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, ok, err := o.Store.Load(vpcName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("vpc %s: %w", vpcName, vpcerr.ErrNotFound)
	}

	targets := o.resolveNATScope(doc, scope)
	if len(targets) == 0 {
		vpclog.WithVPC("orchestrator", vpcName).Warn().Msg("enable-nat: no subnet matched the scope (or, with no explicit scope, none is named public), skipping")
		return doc, nil
	}

	log := vpclog.WithVPC("orchestrator", vpcName).With().Str("interface", iface).Logger()

	var subnetNames []string
	for _, s := range targets {
		snatRule := rules.Rule{
			Table:     "nat",
			Chain:     "POSTROUTING",
			Selectors: []string{"-s", s.CIDR, "-o", iface},
			Verdict:   "MASQUERADE",
			Comment:   fmt.Sprintf("vpcctl:%s:%s:nat:snat", vpcName, s.Name),
		}
		snatTokens, err := o.Rules.Add(ctx, snatRule)
		if err != nil {
			o.persistPartial(doc)
			return doc, fmt.Errorf("nat snat rule for %s: %w", s.Name, err)
		}
		doc.HostIPTables = append(doc.HostIPTables, snatTokens)

		fwdRule := rules.Rule{
			Chain:     "FORWARD",
			Selectors: []string{"-s", s.CIDR, "-o", iface},
			Verdict:   "ACCEPT",
			Comment:   fmt.Sprintf("vpcctl:%s:%s:nat:forward", vpcName, s.Name),
		}
		fwdTokens, err := o.Rules.Add(ctx, fwdRule)
		if err != nil {
			o.persistPartial(doc)
			return doc, fmt.Errorf("nat forward rule for %s: %w", s.Name, err)
		}
		doc.HostIPTables = append(doc.HostIPTables, fwdTokens)

		subnetNames = append(subnetNames, s.Name)
		log.Info().Str("subnet", s.Name).Msg("nat enabled")
	}

	if doc.NAT == nil {
		doc.NAT = &store.NATRecord{Interface: iface, Subnets: subnetNames}
	} else {
		doc.NAT.Interface = iface
		doc.NAT.Subnets = mergeUnique(doc.NAT.Subnets, subnetNames)
	}

	if err := o.Store.Save(doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// resolveNATScope applies the explicit-scope-wins, public-named-subnet-
// fallback, ambiguous-is-no-op heuristic.
func (o *Orchestrator) resolveNATScope(doc *store.Document, scope NATScope) []store.SubnetRecord {
	if len(scope.Subnets) > 0 {
		wanted := make(map[string]bool, len(scope.Subnets))
		for _, n := range scope.Subnets {
			wanted[n] = true
		}
		var out []store.SubnetRecord
		for _, s := range doc.Subnets {
			if wanted[s.Name] {
				out = append(out, s)
			}
		}
		return out
	}

	var out []store.SubnetRecord
	for _, s := range doc.Subnets {
		if s.Name == "public" {
			out = append(out, s)
		}
	}
	return out
}

func mergeUnique(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(added))
	for _, e := range existing {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	for _, a := range added {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}
