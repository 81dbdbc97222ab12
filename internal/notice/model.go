// Package notice manages the published renters-insurance notice pages and
// the tenant responses they collect.
package notice

import "time"

type Notice struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	PropertyName string     `json:"property_name"`
	ManagerEmail string     `json:"manager_email"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	ProgramURL   string     `json:"program_url,omitempty"`
	Published    bool       `json:"published"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// Action is what a tenant chose on the public notice page.
type Action string

const (
	ActionOptOut  Action = "opt_out"
	ActionOptIn   Action = "opt_in"
	ActionUpgrade Action = "upgrade"
)

func (a Action) Valid() bool {
	switch a {
	case ActionOptOut, ActionOptIn, ActionUpgrade:
		return true
	}
	return false
}

type Response struct {
	ID          string    `json:"id"`
	NoticeID    string    `json:"notice_id"`
	Action      Action    `json:"action"`
	TenantName  string    `json:"tenant_name"`
	TenantEmail string    `json:"tenant_email,omitempty"`
	UnitNumber  string    `json:"unit_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
