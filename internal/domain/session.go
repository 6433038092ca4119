package domain

// SessionUser is the identity carried by an active session.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the single active session of a browser.
type Session struct {
	User SessionUser `json:"user"`
}
