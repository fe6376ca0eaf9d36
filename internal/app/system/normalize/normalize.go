// Package normalize canonicalizes user input and identities before they are
// stored or compared.
package normalize

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and collapses inner runs of spaces.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ID returns the canonical string form of a user or workspace identity.
//
// Identities arrive as ObjectIDs from stored documents, as hex strings from
// session claims and URL params, and occasionally as pointers. All of them
// must compare equal when they name the same record, so every membership
// check goes through ID first.
func ID(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case *primitive.ObjectID:
		if id == nil {
			return ""
		}
		return id.Hex()
	case string:
		return strings.ToLower(strings.TrimSpace(id))
	case fmt.Stringer:
		return ID(id.String())
	case nil:
		return ""
	default:
		return ID(fmt.Sprint(id))
	}
}

// ObjectID parses a canonical or loosely formatted hex id.
func ObjectID(s string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(ID(s))
}
