// Package models defines the chat entities shared by the client components:
// profiles, messages with optional media, and the transient upload job.
package models

import "strings"

// User is a profile record in the shared users directory. ID is assigned by
// the identity provider and never changes.
type User struct {
	ID        string
	Name      string
	AvatarURL string
	Online    bool
	Email     string
}

// DisplayName returns Name, falling back to the local part of Email and
// finally to fallback.
func (u User) DisplayName(fallback string) string {
	if n := strings.TrimSpace(u.Name); n != "" {
		return n
	}
	if local, _, ok := strings.Cut(u.Email, "@"); ok && local != "" {
		return local
	}
	return fallback
}
