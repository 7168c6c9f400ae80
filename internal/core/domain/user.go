package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SharedNamespace is used for unauthenticated access.
const SharedNamespace = "shared"

// UserContext identifies the namespace an operation runs in.
// It is passed explicitly to every storage and retrieval call.
type UserContext struct {
	// UserID is the authenticated user, empty for anonymous access.
	UserID string
}

// Anonymous returns the context used when no user is authenticated.
func Anonymous() UserContext {
	return UserContext{}
}

// ForUser returns the context for an authenticated user.
func ForUser(id string) UserContext {
	return UserContext{UserID: id}
}

// IsAnonymous reports whether the context has no user.
func (u UserContext) IsAnonymous() bool {
	return strings.TrimSpace(u.UserID) == ""
}

// Namespace returns the directory name that isolates this user's documents:
// "user_<id>" for authenticated users, SharedNamespace otherwise.
func (u UserContext) Namespace() string {
	if u.IsAnonymous() {
		return SharedNamespace
	}
	return "user_" + strings.TrimSpace(u.UserID)
}

// Validate rejects user ids that could escape the namespace root.
func (u UserContext) Validate() error {
	if u.IsAnonymous() {
		return nil
	}
	id := strings.TrimSpace(u.UserID)
	for _, r := range id {
		ok := r == '-' || r == '_' || r == '.' || r == '@' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return fmt.Errorf("user id %q: %w", u.UserID, ErrInvalidNamespace)
		}
	}
	if id == "." || id == ".." || strings.Contains(id, "..") {
		return fmt.Errorf("user id %q: %w", u.UserID, ErrInvalidNamespace)
	}
	return nil
}

// String returns the namespace, for logging.
func (u UserContext) String() string {
	return u.Namespace()
}

// ValidateFilename rejects names that are empty, hidden or contain path
// elements. Dot-prefixed names are reserved for the registry's temp files.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty filename: %w", ErrInvalidNamespace)
	}
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("filename %q: %w", name, ErrInvalidNamespace)
	}
	return nil
}
