package notify

import (
	"fmt"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// Render returns the title and body shown to a user for n.
func Render(n model.Notice) (title, message string) {
	switch n.Kind {
	case model.NoticeRegistrationConfirmed:
		return "Registration Confirmed: " + n.EventTitle,
			fmt.Sprintf("You have successfully registered for '%s'.", n.EventTitle)
	case model.NoticeWaitlistAdded:
		return "Added to Waitlist: " + n.EventTitle,
			fmt.Sprintf("The event '%s' is currently full, but you have been added to the waitlist. "+
				"You will be notified if a spot becomes available.", n.EventTitle)
	case model.NoticeWaitlistPromoted:
		return "You're off the waitlist: " + n.EventTitle,
			fmt.Sprintf("Great news! A spot has opened up for '%s' and you have been moved "+
				"from the waitlist to confirmed registration.", n.EventTitle)
	case model.NoticeEventUpdated:
		what := "details"
		switch n.Change {
		case model.ChangeSchedule:
			what = "schedule"
		case model.ChangeLocation:
			what = "location"
		}
		return "Event Updated: " + n.EventTitle,
			fmt.Sprintf("The %s of '%s' has changed. Please review the updated event details.", what, n.EventTitle)
	case model.NoticeEventCancelled:
		return "Event Cancelled: " + n.EventTitle,
			fmt.Sprintf("Unfortunately, the event '%s' has been cancelled. "+
				"We apologize for any inconvenience caused.", n.EventTitle)
	}
	return "Event Notification: " + n.EventTitle, ""
}
