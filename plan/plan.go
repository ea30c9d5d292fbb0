package plan

import "github.com/lagren/uptimeguard/api"

// ID names a subscription tier. The four known tiers are totally ordered by
// entitlement; anything unrecognised is treated as Free.
type ID string

const (
	Free       ID = "free"
	Pro        ID = "pro"
	Business   ID = "business"
	Enterprise ID = "enterprise"
)

var ranks = map[ID]int{
	Free:       0,
	Pro:        1,
	Business:   2,
	Enterprise: 3,
}

// All returns the known plans in ascending entitlement order.
func All() []ID {
	return []ID{Free, Pro, Business, Enterprise}
}

func rank(p ID) int {
	if r, ok := ranks[p]; ok {
		return r
	}
	// Unknown plans rank as the most restrictive tier.
	return ranks[Free]
}

// Limits is the entitlement triple derived from a plan.
type Limits struct {
	MaxWebsites      int
	MinCheckInterval int // seconds
	HistoryDays      int
}

var limitsTable = map[ID]Limits{
	Free:       {MaxWebsites: 5, MinCheckInterval: 1800, HistoryDays: 7},
	Pro:        {MaxWebsites: 50, MinCheckInterval: 300, HistoryDays: 90},
	Business:   {MaxWebsites: 200, MinCheckInterval: 60, HistoryDays: 365},
	Enterprise: {MaxWebsites: 1000, MinCheckInterval: 30, HistoryDays: 365},
}

// LimitsFor looks up the static limits for a plan. This is a fallback; a live
// subscription from the service is authoritative and is only validated
// against this table (see Clamp).
func LimitsFor(p ID) Limits {
	if l, ok := limitsTable[p]; ok {
		return l
	}
	return limitsTable[Free]
}

// Comparison is the result of comparing a current plan against a selection.
type Comparison int

const (
	Equal Comparison = iota
	Upgrade
	Downgrade
)

func (c Comparison) String() string {
	switch c {
	case Upgrade:
		return "upgrade"
	case Downgrade:
		return "downgrade"
	default:
		return "equal"
	}
}

// Compare classifies moving from plan a to plan b. The result is advisory:
// downgrades warrant a warning but are never blocked locally, the service
// decides whether one is permitted.
func Compare(a, b ID) Comparison {
	ra, rb := rank(a), rank(b)
	switch {
	case rb > ra:
		return Upgrade
	case rb < ra:
		return Downgrade
	default:
		return Equal
	}
}

// Clamp validates a live subscription against the static table for its plan,
// taking the less generous value wherever the two disagree and backfilling
// fields the service left empty. Unknown plans clamp to the Free limits.
func Clamp(sub api.Subscription) api.Subscription {
	table := LimitsFor(ID(sub.Plan))

	if sub.MaxWebsites <= 0 || sub.MaxWebsites > table.MaxWebsites {
		sub.MaxWebsites = table.MaxWebsites
	}
	if sub.MinCheckInterval <= 0 || sub.MinCheckInterval < table.MinCheckInterval {
		sub.MinCheckInterval = table.MinCheckInterval
	}
	if sub.HistoryDays <= 0 || sub.HistoryDays > table.HistoryDays {
		sub.HistoryDays = table.HistoryDays
	}

	return sub
}
