package domain

// Сообщения, которые возвращаются клиенту
const (
	MsgEmailTaken        = "User with email %s already exists."
	MsgAccountNotFound   = "User not found."
	MsgBadCredentials    = "Incorrect password."
	MsgForbidden         = "No permissions."
	MsgNotAuthenticated  = "Not authenticated."
	MsgMalformedToken    = "Invalid token."
	MsgExpiredToken      = "Token has expired."
	MsgActivationPending = "Activate your profile by link in email. (For testing: %s)"
	MsgProfileActivated  = "User's profile is active."
	MsgActivationEmail   = "Follow the link to activate your profile: %s"
)
