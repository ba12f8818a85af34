// internal/domain/models/order.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusFulfilled = "fulfilled"
	OrderStatusCancelled = "cancelled"
)

// OrderRequests holds the requested lead counts per type.
type OrderRequests struct {
	FTD    int `bson:"ftd" json:"ftd"`
	Filler int `bson:"filler" json:"filler"`
	Cold   int `bson:"cold" json:"cold"`
	Live   int `bson:"live" json:"live"`
}

// Order is a request for a batch of leads. Broker assignments made while
// fulfilling an order carry the order id as their originOrder context.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Requester     primitive.ObjectID `bson:"requester" json:"requester"`
	Status        string             `bson:"status" json:"status"`
	Priority      string             `bson:"priority,omitempty" json:"priority,omitempty"`
	CountryFilter string             `bson:"country_filter,omitempty" json:"country_filter,omitempty"`
	Requests      OrderRequests      `bson:"requests" json:"requests"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
