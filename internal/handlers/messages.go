package handlers

const (
	msgWelcome = "👋 Hello!\n" +
		"Send me files, photos or videos here.\n" +
		"I will turn them into a secure shareable link."
	msgLinkExpired        = "❌ Sorry, this share link has expired."
	msgDeliveryFailed     = "❌ Could not deliver the files. Please try again later."
	msgSendMedia          = "📎 Send me photos, videos or documents and I will create a share link."
	msgPickOption         = "👆 Pick one of the options above to finish your upload."
	msgUploadNotAllowed   = "❌ Sorry, you are not allowed to upload files."
	msgNotAdmin           = "❌ Sorry, you are not an authorized admin."
	msgBroadcastUsage     = "❌ Please write something after /broadcast."
	msgBroadcastQueuedFmt = "✅ Your message is being sent to %d users."
	msgUsersHeaderFmt     = "👥 Total users: %d\n"
	msgHelpHeader         = "Available commands:"

	toastLinkExpirySet = "Link expiry set."
	toastLinkCreated   = "Done. Link created."
	toastNoFiles       = "No files found."
	toastUnsupported   = "Unsupported action"

	broadcastPrefix = "Admin message: "
	// Telegram caps messages at 4096 characters.
	maxMessageLen = 4000
)
