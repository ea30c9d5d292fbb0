package api

import "time"

// User is the account identity as returned by the service.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	TrialEndsAt string `json:"trial_ends_at,omitempty"`
}

// Subscription carries the entitlement limits attached to an account. The
// service is the source of truth for these values; see plan.Clamp for the
// defensive validation applied client-side.
type Subscription struct {
	Plan             string `json:"plan"`
	MaxWebsites      int    `json:"max_websites"`
	MinCheckInterval int    `json:"min_check_interval"`
	HistoryDays      int    `json:"history_days"`
	EmailAlerts      bool   `json:"email_alerts"`
	SMSAlerts        bool   `json:"sms_alerts"`
	APIAccess        bool   `json:"api_access"`
	ExpiresAt        string `json:"expires_at,omitempty"`
}

// Profile is the payload of GET /auth/profile.
type Profile struct {
	User         User         `json:"user"`
	Subscription Subscription `json:"subscription"`
}

// Website mirrors a monitored site exactly as the service last reported it.
// Status is never flipped locally.
type Website struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	CheckInterval int    `json:"check_interval"`
	IsActive      bool   `json:"is_active"`
	CurrentStatus string `json:"current_status"`
	LastChecked   string `json:"last_checked"`
}

// LastCheckedTime parses the service's timestamp. The second return is false
// when the site has never been checked.
func (w Website) LastCheckedTime() (time.Time, bool) {
	if w.LastChecked == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, w.LastChecked); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DashboardStats is the payload of GET /monitoring/dashboard/stats.
type DashboardStats struct {
	TotalWebsites    int     `json:"total_websites"`
	UpWebsites       int     `json:"up_websites"`
	DownWebsites     int     `json:"down_websites"`
	UptimePercentage float64 `json:"uptime_percentage"`
}

// PricingPlan is one entry of the public pricing catalog.
type PricingPlan struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Features []string `json:"features"`
}
