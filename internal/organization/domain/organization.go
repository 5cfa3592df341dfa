package domain

import (
	"errors"
	"time"
)

// Org represents an organization/tenant. This subsystem reads orgs to gate
// onboarding; it never changes their KYC or subscription state.
type Org struct {
	ID                 string
	Name               string
	KYCStatus          KYCStatus
	SubscriptionStatus SubscriptionStatus
	EmployeeLimit      int32
	CreatedAt          time.Time
}

type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusApproved KYCStatus = "approved"
	KYCStatusRejected KYCStatus = "rejected"
)

type SubscriptionStatus string

const (
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	if o.KYCStatus == "" {
		o.KYCStatus = KYCStatusPending
	}
	if o.SubscriptionStatus == "" {
		o.SubscriptionStatus = SubscriptionStatusInactive
	}
	if o.EmployeeLimit < 0 {
		return errors.New("employee limit must not be negative")
	}
	return nil
}

// Onboardable reports whether the org passes both onboarding gates. The
// verifier checks the gates individually to produce distinct failure reasons;
// this is a convenience for callers that only need the combined answer.
func (o *Org) Onboardable() bool {
	return o.KYCStatus == KYCStatusApproved && o.SubscriptionStatus == SubscriptionStatusActive
}
