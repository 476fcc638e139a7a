package common

// Document collections of the shared room.
const (
	MessagesCollection   = "messages"
	UsersCollection      = "users"
	IdentitiesCollection = "identities"
)

// Metadata keys in the local key/value store.
const (
	RetentionMarkerKey = "retention.last_cleanup_at"
	LastEmailKey       = "session.last_email"
	LastProviderKey    = "session.last_provider"
)

// ChangeChannelPrefix prefixes pub/sub channels carrying change signals,
// e.g. "gophchat:changes:messages".
const ChangeChannelPrefix = "gophchat:changes:"
