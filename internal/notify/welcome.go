package notify

import (
	"fmt"
	"html"
)

// WelcomeMessage builds the email sent once a user finishes onboarding.
func WelcomeMessage(name, email string) Message {
	return Message{
		To:      email,
		Subject: "Welcome to your agenda assistant",
		HTML: fmt.Sprintf(`
			<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
				<h2 style="color: #333;">Welcome, %s!</h2>
				<p>Your profile is set up. Reply <b>connect</b> in the chat to link your Google Calendar,
				then <b>agenda</b> to see today's events.</p>
				<p style="color: #aaa; font-size: 12px;">
					If you didn't sign up, you can safely ignore this email.
				</p>
			</div>
		`, html.EscapeString(name)),
	}
}
