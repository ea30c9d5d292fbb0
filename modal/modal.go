// Package modal projects session and plan state into the choices presented
// for the add-website and upgrade flows. Pure functions; no ownership.
package modal

import (
	"github.com/lagren/uptimeguard/api"
	"github.com/lagren/uptimeguard/plan"
)

// IntervalChoice is one catalog entry plus its presentation flag. Locked
// options are labelled (e.g. "(Premium)") but stay selectable; the service is
// the authority on whether a submission with one is accepted.
type IntervalChoice struct {
	Option plan.IntervalOption
	Locked bool
}

// IntervalChoicesFor returns the full interval catalog, in catalog order,
// with premium options the subscription does not reach marked as locked.
func IntervalChoicesFor(sub api.Subscription) []IntervalChoice {
	opts := plan.Intervals()
	choices := make([]IntervalChoice, 0, len(opts))
	for _, opt := range opts {
		choices = append(choices, IntervalChoice{
			Option: opt,
			Locked: opt.Premium && sub.MinCheckInterval > opt.Value,
		})
	}
	return choices
}

// PlanChoice is one plan plus its relation to the current one. IsDowngrade
// drives a warning, never a local block.
type PlanChoice struct {
	Plan        plan.ID
	IsCurrent   bool
	IsDowngrade bool
}

// PlanChoices returns all plans in ascending entitlement order, classified
// against the current plan.
func PlanChoices(current plan.ID) []PlanChoice {
	all := plan.All()
	choices := make([]PlanChoice, 0, len(all))
	for _, p := range all {
		cmp := plan.Compare(current, p)
		choices = append(choices, PlanChoice{
			Plan:        p,
			IsCurrent:   cmp == plan.Equal,
			IsDowngrade: cmp == plan.Downgrade,
		})
	}
	return choices
}
