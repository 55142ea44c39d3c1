package auth

import (
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	noteentity "github.com/ovaphlow/pitchfork/service-notes-go/internal/note/entity"
)

// CanAccess reports whether identity owns note. It gates read, update and
// delete alike.
func CanAccess(identity Identity, note *noteentity.Note) bool {
	return note != nil && identity.ID != 0 && note.OwnerID == identity.ID
}

// CanModifyUser reports whether identity may read, update or delete the
// user record targetID. Only the account holder may.
func CanModifyUser(identity Identity, targetID int64) bool {
	return identity.ID != 0 && identity.ID == targetID
}

// AuthorizeNote is CanAccess as an error.
func AuthorizeNote(identity Identity, note *noteentity.Note) error {
	if !CanAccess(identity, note) {
		return common.ErrForbidden
	}
	return nil
}

// AuthorizeUser is CanModifyUser as an error.
func AuthorizeUser(identity Identity, targetID int64) error {
	if !CanModifyUser(identity, targetID) {
		return common.ErrForbidden
	}
	return nil
}
