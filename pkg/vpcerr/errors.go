// Package vpcerr defines the sentinel error kinds shared across vpcctl's
// control-plane packages. Callers match with errors.Is; wrapping with
// fmt.Errorf("...: %w", ...) preserves the match through context.
package vpcerr

import "errors"

var (
	// ErrNotFound indicates a named VPC, subnet, peering, or app is absent.
	ErrNotFound = errors.New("not found")

	// ErrExists indicates a creation collided with an existing resource.
	ErrExists = errors.New("already exists")

	// ErrCidrOverlap indicates a subnet CIDR overlaps a sibling subnet.
	ErrCidrOverlap = errors.New("cidr overlaps an existing subnet")

	// ErrCidrOutOfRange indicates a subnet CIDR is not contained in its VPC CIDR.
	ErrCidrOutOfRange = errors.New("cidr is outside the vpc range")

	// ErrCidrInvalid indicates a CIDR is malformed or too small to be usable.
	ErrCidrInvalid = errors.New("cidr is invalid")

	// ErrPolicyMalformed indicates a policy document failed schema validation.
	ErrPolicyMalformed = errors.New("policy is malformed")

	// ErrNoMatchingSubnet indicates a policy's subnet field matches no VPC subnet.
	ErrNoMatchingSubnet = errors.New("no subnet matches policy")

	// ErrExec indicates an external command returned a non-zero exit status.
	ErrExec = errors.New("command failed")

	// ErrTimeout indicates an external command exceeded its wall-clock bound.
	ErrTimeout = errors.New("command timed out")

	// ErrStateCorrupt indicates a metadata file could not be parsed or
	// violates a documented invariant.
	ErrStateCorrupt = errors.New("state is corrupt")

	// ErrPrivilege indicates the operation requires privilege not held.
	ErrPrivilege = errors.New("insufficient privilege")

	// ErrSelfPeer indicates an attempt to peer a VPC with itself.
	ErrSelfPeer = errors.New("cannot peer a vpc with itself")

	// ErrAlreadyPeered indicates a peering between two VPCs already exists.
	ErrAlreadyPeered = errors.New("vpcs are already peered")
)
