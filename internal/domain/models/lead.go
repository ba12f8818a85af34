// internal/domain/models/lead.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lead types. FTD ("first-time deposit") leads carry documents; the other
// types are plain contact records.
const (
	LeadTypeFTD    = "ftd"
	LeadTypeFiller = "filler"
	LeadTypeCold   = "cold"
	LeadTypeLive   = "live"
)

// Lead lifecycle statuses.
const (
	LeadStatusActive    = "active"
	LeadStatusContacted = "contacted"
	LeadStatusConverted = "converted"
	LeadStatusInactive  = "inactive"
)

// ValidLeadType reports whether t is one of the fixed lead types.
func ValidLeadType(t string) bool {
	switch t {
	case LeadTypeFTD, LeadTypeFiller, LeadTypeCold, LeadTypeLive:
		return true
	}
	return false
}

// ValidLeadStatus reports whether s is a known lifecycle status.
func ValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusActive, LeadStatusContacted, LeadStatusConverted, LeadStatusInactive:
		return true
	}
	return false
}

// BrokerAssignment is the embedded record of a lead being routed to a
// broker. The network/domain context is a snapshot taken at assignment
// time, not a live join.
type BrokerAssignment struct {
	BrokerID   primitive.ObjectID  `bson:"broker_id" json:"broker_id"`
	AssignedBy primitive.ObjectID  `bson:"assigned_by" json:"assigned_by"`
	AssignedAt time.Time           `bson:"assigned_at" json:"assigned_at"`
	OrderID    *primitive.ObjectID `bson:"order_id,omitempty" json:"order_id,omitempty"`
	Network    string              `bson:"network,omitempty" json:"network,omitempty"`
	Domain     string              `bson:"domain,omitempty" json:"domain,omitempty"`
}

// LeadComment is a free-text note on a lead. Bodies are sanitized before
// they are persisted.
type LeadComment struct {
	ID        string             `bson:"id" json:"id"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"author_id"`
	Body      string             `bson:"body" json:"body"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// LeadDocument is an uploaded verification document reference (FTD leads).
type LeadDocument struct {
	URL         string `bson:"url" json:"url"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Status      string `bson:"status" json:"status"` // good | ok | pending
}

// Lead is a prospective customer record.
//
// Two independent assignment mechanisms live on a lead:
//   - AssignedAgent: exclusive, single-valued. A lead is worked by at most
//     one agent at a time.
//   - AssignedBrokers: an ordered set of broker-assignment records. Broker B
//     appears here if and only if this lead's id appears in B's MemberLeads
//     (the bidirectional invariant the assignment engine maintains).
type Lead struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LeadType    string             `bson:"lead_type" json:"lead_type"`
	FirstName   string             `bson:"first_name" json:"first_name"`
	LastName    string             `bson:"last_name" json:"last_name"`
	FirstNameCI string             `bson:"first_name_ci" json:"-"` // lowercase, diacritics-stripped
	LastNameCI  string             `bson:"last_name_ci" json:"-"`
	Prefix      string             `bson:"prefix,omitempty" json:"prefix,omitempty"`
	NewEmail    string             `bson:"new_email" json:"new_email"`
	OldEmail    string             `bson:"old_email,omitempty" json:"old_email,omitempty"`
	NewPhone    string             `bson:"new_phone" json:"new_phone"`
	OldPhone    string             `bson:"old_phone,omitempty" json:"old_phone,omitempty"`
	Country     string             `bson:"country" json:"country"`
	Gender      string             `bson:"gender,omitempty" json:"gender,omitempty"`
	Client      string             `bson:"client,omitempty" json:"client,omitempty"`
	Status      string             `bson:"status" json:"status"`

	Documents []LeadDocument `bson:"documents,omitempty" json:"documents,omitempty"`
	Comments  []LeadComment  `bson:"comments,omitempty" json:"comments,omitempty"`

	// Exclusive agent assignment.
	IsAssigned    bool                `bson:"is_assigned" json:"is_assigned"`
	AssignedAgent *primitive.ObjectID `bson:"assigned_agent,omitempty" json:"assigned_agent,omitempty"`
	AssignedAt    *time.Time          `bson:"assigned_at,omitempty" json:"assigned_at,omitempty"`

	// Broker assignment records (set semantics on broker_id).
	AssignedBrokers []BrokerAssignment `bson:"assigned_brokers" json:"assigned_brokers"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	// Version is an optimistic-concurrency counter bumped on every write.
	Version int64 `bson:"version" json:"-"`
}

// IsAssignedToBroker reports whether brokerID is present in the lead's
// broker-assignment set.
func (l *Lead) IsAssignedToBroker(brokerID primitive.ObjectID) bool {
	for _, a := range l.AssignedBrokers {
		if a.BrokerID == brokerID {
			return true
		}
	}
	return false
}

// BrokerAssignmentFor returns the assignment record for brokerID, if any.
func (l *Lead) BrokerAssignmentFor(brokerID primitive.ObjectID) (BrokerAssignment, bool) {
	for _, a := range l.AssignedBrokers {
		if a.BrokerID == brokerID {
			return a, true
		}
	}
	return BrokerAssignment{}, false
}

// BrokerIDs returns the ids in the broker-assignment set, in order.
func (l *Lead) BrokerIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(l.AssignedBrokers))
	for _, a := range l.AssignedBrokers {
		ids = append(ids, a.BrokerID)
	}
	return ids
}

// FullName returns "First Last" for messages and logs.
func (l *Lead) FullName() string {
	if l.FirstName == "" {
		return l.LastName
	}
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}
