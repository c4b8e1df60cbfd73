package vpc

import "github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/rules"

// jumpRuleFor returns the host FORWARD-chain rule that routes traffic into
// a VPC's dedicated chain.
func jumpRuleFor(vpcName, chain string) rules.Rule {
	return rules.Rule{
		Chain:   "FORWARD",
		Verdict: chain,
		Comment: "vpcctl:" + vpcName + ":jump",
	}
}
