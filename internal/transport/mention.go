package transport

import "fmt"

// MentionHTML renders an HTML user mention understood by the Telegram
// adapter. Kept here so the notifier can tag owners without importing the
// adapter.
func MentionHTML(userID int64) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">⏰</a>`, userID)
}
