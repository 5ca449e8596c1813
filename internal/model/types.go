package model

// User is an identity record. Immutable after signup.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    int64
}

// Session is a server-issued bearer credential: possession of the ID
// authenticates as UserID. Sessions live until logout.
type Session struct {
	ID        string
	UserID    string
	CreatedAt int64
}

// Timer is a tracked interval. Created active with End unset; a stop sets End
// and clears Active exactly once. Timestamps are Unix milliseconds.
type Timer struct {
	ID          string
	UserID      string
	Description string
	Start       int64
	End         int64
	Active      bool
}

// TimerView is the wire shape of a Timer. Progress is filled for active
// timers, Duration for stopped ones; both are derived at read time and never
// stored.
type TimerView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Start       int64  `json:"start"`
	End         int64  `json:"end,omitempty"`
	IsActive    bool   `json:"isActive"`
	Progress    int64  `json:"progress,omitempty"`
	Duration    int64  `json:"duration,omitempty"`
}
