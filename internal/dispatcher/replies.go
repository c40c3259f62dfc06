package dispatcher

import (
	"fmt"
	"strings"

	"agendabot-backend/internal/calendar"
	"agendabot-backend/internal/models"
)

const (
	helpText = "🤖 *Here's what I can do:*\n" +
		"• *hi* / *hello* – say hello\n" +
		"• *connect* – link your Google Calendar\n" +
		"• *agenda* – today's events\n" +
		"• *set tz <Area/City>* – change your timezone\n" +
		"• *whoami* – your profile\n" +
		"• *onboard* – redo your profile\n" +
		"• *help* – this list"

	alreadyConnectedText = "✅ Your Google Calendar is already connected. Type *agenda* to see today's events."
	connectFailedText    = "⚠️ I couldn't create a connection link right now. Please try again later."
	notConnectedText     = "📅 Your calendar isn't connected yet. Type *connect* to link it."
	agendaFailedText     = "⚠️ I couldn't fetch your calendar. Type *connect* to reconnect and try again."
	agendaSendFailedText = "⚠️ Sorry, I couldn't deliver your agenda. Please try again later."
	noEventsText         = "📅 No events on your calendar today."
	notOnboardedText     = "You haven't completed your profile yet. Type *onboard* to get started."
	unknownText          = "🤔 I didn't understand that. Type *help* to see what I can do."
)

func greeting(p *models.Profile) string {
	if p != nil && p.Name != "" {
		return fmt.Sprintf("👋 Hi %s! Type *agenda* for today's events or *help* for more.", p.Name)
	}
	return "👋 Hi there! Type *help* to see what I can do."
}

func connectText(url string) string {
	return "🔗 Connect your Google Calendar:\n" + url
}

func timezoneSetText(tz string) string {
	return fmt.Sprintf("🕒 Timezone set to *%s*.", tz)
}

func whoamiText(p *models.Profile, linked bool) string {
	phone := p.Phone
	if phone == "" {
		phone = "Not provided"
	}
	status := "Not connected"
	if linked {
		status = "Connected"
	}
	return fmt.Sprintf("👤 *Your profile*\nName: %s\nEmail: %s\nPhone: %s\nCalendar: %s", p.Name, p.Email, phone, status)
}

// agendaText renders events in the order given; the lookup returns them chronologically.
func agendaText(events []calendar.Event) string {
	if len(events) == 0 {
		return noEventsText
	}
	var b strings.Builder
	b.WriteString("📅 *Today's agenda:*")
	for _, ev := range events {
		when := "All-day"
		if !ev.AllDay {
			when = ev.Start.Format("15:04")
		}
		fmt.Fprintf(&b, "\n• %s %s", when, ev.Summary)
	}
	return b.String()
}
