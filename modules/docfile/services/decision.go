package services

import (
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/pkg/classification"
)

// DecisionEngine evaluates the layered security model. It holds only
// immutable snapshots, so Decide is a pure function of its inputs and is
// reevaluated on every access attempt.
type DecisionEngine struct {
	lattice classification.Lattice
	groups  GroupSnapshot
}

func NewDecisionEngine(lattice classification.Lattice, groups GroupSnapshot) DecisionEngine {
	return DecisionEngine{lattice: lattice, groups: groups}
}

// Decide runs the checks in order: clearance, releasability, eyes-only.
// The first failing check determines the denial reason. The action does not
// change the policy yet; it is threaded through so a differentiated policy
// (e.g. a stricter delete gate) can land without changing this contract.
func (e DecisionEngine) Decide(p types.Principal, profile types.SecurityProfile, _ types.Action) types.Decision {
	if !e.lattice.AtLeastAsRestrictive(p.Clearance, profile.Classification) {
		return types.Deny(types.DenyInsufficientClearance)
	}

	if len(profile.ReleasableTo) > 0 && !e.releasableTo(p, profile.ReleasableTo) {
		return types.Deny(types.DenyNotReleasable)
	}

	// Eyes-only is conjunctive: membership in every listed group.
	for _, g := range profile.EyesOnly {
		if !p.InGroup(g.ID) {
			return types.Deny(types.DenyEyesOnlyRestricted)
		}
	}

	return types.Allow()
}

// releasableTo is disjunctive: any listed group suffices, and membership in
// any default group satisfies releasability outright.
func (e DecisionEngine) releasableTo(p types.Principal, groups []types.Group) bool {
	for _, g := range groups {
		if p.InGroup(g.ID) {
			return true
		}
	}
	for _, id := range p.Groups {
		if e.groups.IsDefault(id) {
			return true
		}
	}
	return false
}
