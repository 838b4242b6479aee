package model

import (
	"strings"
	"time"
)

type Person struct {
	ID          string
	Email       string
	DisplayName string
	Timezone    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Collaborator is someone an organizer has invited, with how often.
type Collaborator struct {
	Email       string
	DisplayName string
	Timezone    string
	Invites     int
}

// NormalizeEmail is the matching form of an address: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LooksLikeEmail is the minimal shape check applied to participant addresses.
func LooksLikeEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
