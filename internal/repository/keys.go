package repository

// usersKey is the set of every identifier the assistant has seen.
const usersKey = "users"

func settingsKey(uid string) string   { return "user:" + uid + ":settings" }
func profileKey(uid string) string    { return "user:" + uid + ":profile" }
func googleKey(uid string) string     { return "user:" + uid + ":google" }
func onboardingKey(uid string) string { return "user:" + uid + ":onboarding" }
func lastSendKey(uid string) string   { return "user:" + uid + ":last_send" }
