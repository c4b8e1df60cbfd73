package vpc

import (
	"context"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/verify"
)

// Verify implements verify: a read-only cross-check of live kernel state
// against every VPC document, delegated entirely to the Verifier.
func (o *Orchestrator) Verify(ctx context.Context) (*verify.Report, error) {
	return verify.New(o.Exec, o.Store).Run(ctx)
}
