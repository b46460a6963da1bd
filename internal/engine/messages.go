package engine

import (
	"fmt"
	"strings"

	"github.com/theuszinp/chatbot/internal/hours"
	"github.com/theuszinp/chatbot/internal/types"
)

// menuText builds the sector menu shown to idle contacts
func (e *Engine) menuText(displayName string) string {
	var b strings.Builder
	if displayName != "" {
		fmt.Fprintf(&b, "Hello, %s! Welcome to %s.\n", displayName, e.cfg.CompanyName)
	} else {
		fmt.Fprintf(&b, "Hello! Welcome to %s.\n", e.cfg.CompanyName)
	}
	b.WriteString("Choose the service you need:\n\n")
	for _, sector := range types.AllSectors {
		fmt.Fprintf(&b, "%s - %s", string(sector), sector.Name())
		if hours.Gated(sector) {
			fmt.Fprintf(&b, " (%s)", hours.WindowText(sector))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReply with the number of the desired option.")
	return b.String()
}

// closedSectorText is the notice sent when a time-gated sector is
// selected outside its window
func closedSectorText(sector types.Sector) string {
	return fmt.Sprintf("%s service is available %s. Please come back during business hours or choose another option.",
		sector.Name(), hours.WindowText(sector))
}

// queuedText reports the contact's position and the ETA estimate
func (e *Engine) queuedText(sector types.Sector, position int) string {
	eta := position * e.cfg.AvgServiceMinutes
	return fmt.Sprintf("You are in the %s queue at position %d. Estimated wait: about %d minutes. We will let you know as soon as an attendant is available.",
		sector.Name(), position, eta)
}

// connectedText tells the contact their service started
func connectedText(attendantName string, sector types.Sector, code string) string {
	return fmt.Sprintf("You are now being served by %s (%s). Service code: %s.",
		attendantName, sector.Name(), code)
}

// newServiceText tells the attendant about their new service
func newServiceText(displayName, contact string, sector types.Sector, code string) string {
	who := contact
	if displayName != "" {
		who = fmt.Sprintf("%s (%s)", displayName, contact)
	}
	return fmt.Sprintf("New service %s: %s, sector %s.", code, who, sector.Name())
}

// ratingPromptText asks for the post-service rating. The code clause
// is dropped when the episode never opened a service record, such as a
// forced close of a still-queued contact.
func ratingPromptText(code string) string {
	if code == "" {
		return "Your service has been closed. Thank you! Please rate the service from 1 to 5, or send \"menu\" to skip."
	}
	return fmt.Sprintf("Your service %s has been closed. Thank you! Please rate the service from 1 to 5, or send \"menu\" to skip.", code)
}

// thanksText acknowledges a received rating
func thanksText(score int) string {
	return fmt.Sprintf("Thank you for your rating of %d! We hope to see you again.", score)
}

// ratingExpiredText is sent when the rating window times out
func ratingExpiredText() string {
	return "The rating period has expired. Thank you for contacting us!"
}

// idleClosedText is sent when an active chat is closed for inactivity
func idleClosedText() string {
	return "Your service was closed due to inactivity. Send any message to see the menu again."
}

// closeRequestContactText notifies the contact of a pending close
func closeRequestContactText() string {
	return "The attendant has requested to close this service. Please wait for confirmation."
}

// closeRequestAttendantText prompts the attendant to confirm the close
func (e *Engine) closeRequestAttendantText() string {
	return fmt.Sprintf("Confirm closing this service? Reply \"%s\" to confirm or \"%s\" to continue the service.",
		e.cfg.ConfirmCommand, e.cfg.DeclineCommand)
}

// closeDeclinedText notifies both parties the service continues
func closeDeclinedText() string {
	return "Closing cancelled. The service continues."
}

// attendantMustCloseText redirects contacts trying to end the service
func attendantMustCloseText() string {
	return "Only the attendant can close this service. If you are done, please let the attendant know."
}

// transferContactText notifies the contact of a transfer
func transferContactText(sector types.Sector) string {
	return fmt.Sprintf("You have been transferred to %s. You are back in the queue and will be served shortly.",
		sector.Name())
}

// noSessionText answers attendants who message without an active service
func noSessionText() string {
	return "You have no active service at the moment."
}

// invalidRatingText re-prompts after bad rating input
func invalidRatingText() string {
	return "Please send a number from 1 to 5 to rate the service, or \"menu\" to skip."
}

// resetApologyText is sent when an inconsistent session is self-healed
func resetApologyText() string {
	return "Sorry, something went wrong with your service. Let's start over."
}
