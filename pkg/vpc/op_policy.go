package vpc

import (
	"context"
	"fmt"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/policy"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

// ApplyPolicy implements apply-policy(vpc, policy_doc): it compiles and
// installs a subnet-scoped ingress/egress policy, replacing any policy
// previously recorded for the same subnet.
func (o *Orchestrator) ApplyPolicy(ctx context.Context, vpcName string, raw []byte) (*store.Document, error) {
	doc2, err := policy.Parse(raw)
	if err != nil {
		return nil, err
	}

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

	if err := o.applyPolicyRules(ctx, doc, vpcName, doc2); err != nil {
		o.persistPartial(doc)
		return doc, fmt.Errorf("apply policy: %w", err)
	}

	if err := o.Store.Save(doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// applyPolicyRules compiles p against doc, installs every rule through the
// Filter-Rule Manager, and records the applied policy in doc.Policies,
// replacing any existing record for the same subnet. It mutates doc but
// does not persist it; callers own the Save.
func (o *Orchestrator) applyPolicyRules(ctx context.Context, doc *store.Document, vpcName string, p *policy.Document) error {
	compiled, err := policy.Compile(vpcName, doc, p)
	if err != nil {
		return err
	}
	for _, r := range compiled {
		if _, err := o.Rules.Add(ctx, r); err != nil {
			return err
		}
	}

	record := store.PolicyRecord{
		Subnet:  p.Subnet,
		Ingress: toStoreRules(p.Ingress),
		Egress:  toStoreRules(p.Egress),
	}
	replaced := false
	for i, existing := range doc.Policies {
		if existing.Subnet == record.Subnet {
			doc.Policies[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Policies = append(doc.Policies, record)
	}
	return nil
}

func toStoreRules(in []policy.Rule) []store.PolicyRule {
	out := make([]store.PolicyRule, len(in))
	for i, r := range in {
		out[i] = store.PolicyRule{Port: r.Port, Protocol: r.Protocol, Action: r.Action}
	}
	return out
}
