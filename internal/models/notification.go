package models

import "time"

// Frequency controls how often notification digests are sent.
type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyRealtime, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

type EmailNotifications struct {
	DealUpdates     bool `gorm:"not null" json:"dealUpdates" bson:"deal_updates"`
	ContactActivity bool `gorm:"not null" json:"contactActivity" bson:"contact_activity"`
	TaskReminders   bool `gorm:"not null" json:"taskReminders" bson:"task_reminders"`
	TeamMentions    bool `gorm:"not null" json:"teamMentions" bson:"team_mentions"`
}

type SystemNotifications struct {
	SystemUpdates  bool `gorm:"not null" json:"systemUpdates" bson:"system_updates"`
	SecurityAlerts bool `gorm:"not null" json:"securityAlerts" bson:"security_alerts"`
}

// NotificationSettings holds one user's notification preferences.
type NotificationSettings struct {
	UserID              string              `gorm:"primaryKey;size:36" json:"-" bson:"_id"`
	EmailNotifications  EmailNotifications  `gorm:"embedded;embeddedPrefix:email_" json:"emailNotifications" bson:"email_notifications"`
	SystemNotifications SystemNotifications `gorm:"embedded;embeddedPrefix:system_" json:"systemNotifications" bson:"system_notifications"`
	Frequency           Frequency           `gorm:"size:20;not null" json:"notificationFrequency" bson:"frequency"`
	UpdatedAt           time.Time           `json:"-" bson:"updated_at"`
}

// DefaultNotificationSettings returns the settings a user has before saving any.
func DefaultNotificationSettings(userID string) *NotificationSettings {
	return &NotificationSettings{
		UserID: userID,
		EmailNotifications: EmailNotifications{
			DealUpdates:     true,
			ContactActivity: true,
			TaskReminders:   true,
			TeamMentions:    true,
		},
		SystemNotifications: SystemNotifications{
			SystemUpdates:  true,
			SecurityAlerts: true,
		},
		Frequency: FrequencyRealtime,
	}
}
