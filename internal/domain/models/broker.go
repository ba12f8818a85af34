// internal/domain/models/broker.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Broker is a third-party counterparty leads can be routed to.
//
// MemberLeads mirrors the leads whose AssignedBrokers set contains this
// broker's id; the assignment engine keeps both sides consistent. Domain is
// nullable-unique: brokers without a domain store no value at all so the
// sparse unique index never sees two identical blanks.
type Broker struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Domain      *string            `bson:"domain,omitempty" json:"domain,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool               `bson:"is_active" json:"is_active"`

	MemberLeads        []primitive.ObjectID `bson:"member_leads" json:"member_leads"`
	TotalLeadsAssigned int64                `bson:"total_leads_assigned" json:"total_leads_assigned"`
	LastAssignedAt     *time.Time           `bson:"last_assigned_at,omitempty" json:"last_assigned_at,omitempty"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	// Version is an optimistic-concurrency counter bumped on every write.
	Version int64 `bson:"version" json:"-"`
}

// HasMember reports whether leadID is in the broker's member set.
func (b *Broker) HasMember(leadID primitive.ObjectID) bool {
	for _, id := range b.MemberLeads {
		if id == leadID {
			return true
		}
	}
	return false
}

// MemberCount returns the current member-set size.
func (b *Broker) MemberCount() int {
	return len(b.MemberLeads)
}
