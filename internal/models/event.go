package models

import "time"

// Routing keys of the domain events published to the broker.
const (
	EventAccountRegistered = "account.registered"
	EventAccountOrphaned   = "account.orphaned"
	EventListingCreated    = "listing.created"
	EventListingDeleted    = "listing.deleted"
	EventListingReported   = "listing.reported"
	EventUserFollowed      = "user.followed"
	EventUserUnfollowed    = "user.unfollowed"
)

// AccountEvent is published when registration succeeds or leaves an
// identity account without a user record.
type AccountEvent struct {
	AccountID string    `json:"accountID"`
	Email     string    `json:"email"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// ListingEvent is published after a listing write.
type ListingEvent struct {
	ListingID string    `json:"listingID"`
	UserID    string    `json:"userID,omitempty"`
	Title     string    `json:"title,omitempty"`
	At        time.Time `json:"at"`
}

// FollowEvent describes a follow edge change.
type FollowEvent struct {
	FollowerID string    `json:"followerID"`
	TargetID   string    `json:"targetID"`
	At         time.Time `json:"at"`
}

// ReportReason classifies a listing report.
type ReportReason string

const (
	ReportCounterfeit   ReportReason = "counterfeit"
	ReportInappropriate ReportReason = "inappropriate"
	ReportMisleading    ReportReason = "misleading"
	ReportOther         ReportReason = "other"
)

// ListingReport is a user's complaint about a listing.
type ListingReport struct {
	ListingID  string       `json:"listingID" validate:"required"`
	ReporterID string       `json:"reporterID" validate:"required"`
	Reason     ReportReason `json:"reason" validate:"required,oneof=counterfeit inappropriate misleading other"`
	Details    string       `json:"details" validate:"max=2000"`
	At         time.Time    `json:"at"`
}
