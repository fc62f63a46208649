package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscribers pick the resources whose committed schedule changes they want
// to hear about.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Resources []*Resource `gorm:"many2many:subscription_resource_mapping;"`
}
