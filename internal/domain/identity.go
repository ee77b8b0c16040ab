package domain

import "errors"

// Identity is the owner of a cart: either an authenticated user
// or an anonymous session. Exactly one of the two fields is set.
type Identity struct {
	UserID       int64
	SessionToken string
}

func UserIdentity(userID int64) Identity {
	return Identity{UserID: userID}
}

func SessionIdentity(token string) Identity {
	return Identity{SessionToken: token}
}

func (i Identity) IsUser() bool {
	return i.UserID != 0
}

func (i Identity) Validate() error {
	if i.UserID != 0 && i.SessionToken != "" {
		return errors.New("identity has both user id and session token")
	}

	if i.UserID == 0 && i.SessionToken == "" {
		return errors.New("identity has neither user id nor session token")
	}

	return nil
}
