package reminder

import (
	"fmt"
	"time"

	"recipescheduler/internal/external"
	"recipescheduler/internal/types"
)

const (
	notificationTitle = "Recipe Reminder"
	notificationSound = "default"
)

// RenderNotification builds the push message for a reminder.
func RenderNotification(to string, p types.ReminderPayload) external.PushMessage {
	return external.PushMessage{
		To:    to,
		Sound: notificationSound,
		Title: notificationTitle,
		Body:  "Time to: " + p.Title,
		Data: map[string]any{
			"eventId":   p.EventID,
			"eventTime": p.EventTime.UTC().Format(time.RFC3339),
		},
	}
}

// fallbackNotice is the human-readable text logged in place of a push that
// did not reach the user.
func fallbackNotice(p types.ReminderPayload) string {
	return fmt.Sprintf("%q reminder - event at %s", p.Title, p.EventTime.UTC().Format(time.RFC3339))
}
