package models

import "time"

// FirstAdminClaim is the name of the bootstrap claim won by the first registration.
const FirstAdminClaim = "first_admin"

// BootstrapClaim marks a one-time bootstrap step as taken. The unique name makes
// concurrent claimants race on an insert rather than on a count.
type BootstrapClaim struct {
	Name      string    `gorm:"primaryKey;size:50"`
	UserID    string    `gorm:"size:36;not null"`
	ClaimedAt time.Time `gorm:"not null"`
}
