package bot

import (
	"fmt"
	"strings"
	"time"

	"puregym-bot/model"
	"puregym-bot/puregym"
)

func escapeMarkdownV2(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

const helpText = `Commands:
/start - start booking classes for me
/stop - stop booking classes for me
/booked_classes - classes currently booked in PureGym
/bookings - bookings managed by the bot
/class_ids - class types and their ids
/center_ids - centers and their ids
/help - show this message`

func formatBookedClasses(classes []puregym.GymClass) string {
	if len(classes) == 0 {
		return "No classes booked\\."
	}
	var b strings.Builder
	b.WriteString("📅 *Booked classes*:\n\n")
	for _, c := range classes {
		fmt.Fprintf(&b, "\\- *%s* %s %s\\-%s \\(%s\\)\n",
			escapeMarkdownV2(c.Title),
			escapeMarkdownV2(c.Date),
			escapeMarkdownV2(shortTime(c.StartTime)),
			escapeMarkdownV2(shortTime(c.EndTime)),
			escapeMarkdownV2(c.Location))
	}
	return b.String()
}

func formatBookings(bookings []model.ManagedBooking, loc *time.Location) string {
	if len(bookings) == 0 {
		return "The bot is not managing any bookings\\."
	}
	var b strings.Builder
	b.WriteString("📋 *Managed bookings*:\n\n")
	for _, mb := range bookings {
		title := mb.Title
		if title == "" {
			title = "Class " + mb.BookingID
		}
		fmt.Fprintf(&b, "%s *%s* %s",
			escapeMarkdownV2(mb.Status.Label()),
			escapeMarkdownV2(title),
			escapeMarkdownV2(mb.ClassDateTime.In(loc).Format("Mon 2 Jan 15:04")))
		if mb.Location != "" {
			fmt.Fprintf(&b, " \\(%s\\)", escapeMarkdownV2(mb.Location))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatClassTypes(groups []puregym.ClassTypeGroup) string {
	var b strings.Builder
	b.WriteString("🏷️ *Class ids*:\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "\n*%s*\n", escapeMarkdownV2(g.Title))
		for _, o := range g.Options {
			fmt.Fprintf(&b, "`%d` %s\n", o.Value, escapeMarkdownV2(o.Label))
		}
	}
	return b.String()
}

func formatCenters(groups []puregym.CenterGroup) string {
	var b strings.Builder
	b.WriteString("📍 *Center ids*:\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "\n*%s*\n", escapeMarkdownV2(g.Label))
		for _, o := range g.Options {
			fmt.Fprintf(&b, "`%d` %s\n", o.Value, escapeMarkdownV2(o.Label))
		}
	}
	return b.String()
}

// shortTime turns "17:00:00" into "17:00".
func shortTime(s string) string {
	if len(s) == len("15:04:05") {
		return s[:5]
	}
	return s
}

// Portal failures are logged; the user only gets this.
const portalUnavailableText = "Could not reach PureGym right now, please try again later."
