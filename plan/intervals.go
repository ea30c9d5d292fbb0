package plan

import "github.com/lagren/uptimeguard/api"

// IntervalOption is one entry of the static check-interval catalog.
type IntervalOption struct {
	Value   int // seconds
	Label   string
	Premium bool
}

// Catalog order is authoritative for presentation; filtering preserves it.
var intervalCatalog = []IntervalOption{
	{Value: 30, Label: "30 seconds", Premium: true},
	{Value: 60, Label: "1 minute", Premium: true},
	{Value: 300, Label: "5 minutes", Premium: true},
	{Value: 900, Label: "15 minutes"},
	{Value: 1800, Label: "30 minutes"},
	{Value: 3600, Label: "1 hour"},
}

// Intervals returns the full catalog.
func Intervals() []IntervalOption {
	out := make([]IntervalOption, len(intervalCatalog))
	copy(out, intervalCatalog)
	return out
}

// AvailableIntervals filters the catalog for a subscription. Non-premium
// options are always available; premium options require the subscription's
// minimum interval to already permit them.
func AvailableIntervals(sub api.Subscription) []IntervalOption {
	var out []IntervalOption
	for _, opt := range intervalCatalog {
		if opt.Value >= sub.MinCheckInterval || !opt.Premium {
			out = append(out, opt)
		}
	}
	return out
}

// IntervalAvailable reports whether value is a selectable interval under the
// subscription. Values outside the catalog are never available.
func IntervalAvailable(sub api.Subscription, value int) bool {
	for _, opt := range AvailableIntervals(sub) {
		if opt.Value == value {
			return true
		}
	}
	return false
}
