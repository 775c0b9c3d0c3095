// Package grading turns per-role raw scores into weighted component scores,
// student totals with pass/fail status, and dashboard statistics.
//
// Every function here is pure: configuration such as the role weightage and
// the pass threshold is passed in explicitly on each call.
package grading

import (
	"errors"
	"fmt"
	"math"
)

// Role identifies which assessor produced a raw score.
type Role string

const (
	RoleSupervisor Role = "SUPERVISOR"
	RoleModerator  Role = "MODERATOR"
)

// Valid reports whether r is one of the grading roles.
func (r Role) Valid() bool {
	return r == RoleSupervisor || r == RoleModerator
}

// Canonical defaults applied whenever nothing has been configured.
const (
	DefaultSupervisorWeight = 70.0
	DefaultModeratorWeight  = 30.0
	DefaultPassThreshold    = 60.0
	DefaultHistogramBins    = 10
)

const weightageTolerance = 0.001

// ErrInvalidRoleWeightage is returned by Validate for unusable weightage pairs.
var ErrInvalidRoleWeightage = errors.New("role weightages must each be within 0-100 and sum to 100")

// RoleWeightage is the percentage blend applied to supervisor and moderator scores.
type RoleWeightage struct {
	Supervisor float64 `json:"supervisor"`
	Moderator  float64 `json:"moderator"`
}

// DefaultRoleWeightage returns the canonical 70/30 split.
func DefaultRoleWeightage() RoleWeightage {
	return RoleWeightage{Supervisor: DefaultSupervisorWeight, Moderator: DefaultModeratorWeight}
}

// Validate checks that both weights are percentages summing to 100.
func (w RoleWeightage) Validate() error {
	for _, v := range []float64{w.Supervisor, w.Moderator} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("%w: got %.2f/%.2f", ErrInvalidRoleWeightage, w.Supervisor, w.Moderator)
		}
	}
	if math.Abs(w.Supervisor+w.Moderator-100) > weightageTolerance {
		return fmt.Errorf("%w: got %.2f/%.2f", ErrInvalidRoleWeightage, w.Supervisor, w.Moderator)
	}
	return nil
}

// For returns the weight applied to role, or 0 for an unknown role.
func (w RoleWeightage) For(role Role) float64 {
	switch role {
	case RoleSupervisor:
		return w.Supervisor
	case RoleModerator:
		return w.Moderator
	default:
		return 0
	}
}

// Policy bundles the configuration a calculation pass runs under.
type Policy struct {
	Weightage     RoleWeightage `json:"weightage"`
	PassThreshold float64       `json:"pass_threshold"`
}
