package relay

import "fmt"

// User-facing notices sent back to the user when part of a message could not
// be relayed. Each failure cause has its own text.
const (
	noticeSessionFailed  = "I couldn't connect to our support system at the moment. Please try again in a few moments. If the problem persists, please notify an administrator."
	noticeSessionInvalid = "An unexpected problem occurred with the support system connection. Please try again later."
	noticeTextFailed     = "I couldn't forward your text message to our support team. Please try resending it."
	noticeUploadFailed   = "I couldn't upload your file or send its link. Please try again or contact an administrator if the problem persists."
)

func noticeLinkFailed(name string) string {
	return fmt.Sprintf("I couldn't send the link for your file \"%s\". Please try again.", name)
}

// uploadFallbackText is posted when an upload failed and the file link is sent instead.
func uploadFallbackText(name, url string) string {
	return fmt.Sprintf("User attachment (%s): %s", name, url)
}

// linkText is posted when uploads are disabled.
func linkText(name, url string) string {
	return fmt.Sprintf("User sent a file (%s): %s", name, url)
}

func inaccessibleFileNote(filename string) string {
	if filename == "" {
		filename = "unknown file"
	}
	return fmt.Sprintf("\n(Chatwoot sent a file: %s, but its URL is inaccessible)", filename)
}
