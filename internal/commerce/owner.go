package commerce

import (
	"fmt"

	"github.com/google/uuid"
)

// Owner is a tagged union: either a registered user id or an opaque guest
// token, never both. The zero Owner is invalid.
type Owner struct {
	userID     uuid.UUID
	guestToken string
}

func UserOwner(id uuid.UUID) Owner      { return Owner{userID: id} }
func GuestOwner(token string) Owner     { return Owner{guestToken: token} }
func (o Owner) User() (uuid.UUID, bool) { return o.userID, o.userID != uuid.Nil }
func (o Owner) Guest() (string, bool)   { return o.guestToken, o.guestToken != "" }
func (o Owner) IsZero() bool            { return o.userID == uuid.Nil && o.guestToken == "" }

func (o Owner) String() string {
	if id, ok := o.User(); ok {
		return "user:" + id.String()
	}
	if _, ok := o.Guest(); ok {
		return "guest"
	}
	return "none"
}

// OwnerFromColumns reconstructs an Owner from nullable storage columns.
func OwnerFromColumns(userID *uuid.UUID, guestToken *string) (Owner, error) {
	switch {
	case userID != nil && guestToken != nil:
		return Owner{}, fmt.Errorf("%w: owner has both user id and guest token", ErrValidation)
	case userID != nil:
		return UserOwner(*userID), nil
	case guestToken != nil && *guestToken != "":
		return GuestOwner(*guestToken), nil
	default:
		return Owner{}, fmt.Errorf("%w: owner missing", ErrValidation)
	}
}

// Columns splits the union back into nullable storage columns.
func (o Owner) Columns() (userID *uuid.UUID, guestToken *string) {
	if id, ok := o.User(); ok {
		return &id, nil
	}
	if t, ok := o.Guest(); ok {
		return nil, &t
	}
	return nil, nil
}

// NewGuestToken mints an unguessable capability token (uuid v4, backed by
// crypto/rand).
func NewGuestToken() string { return uuid.NewString() }
