// Package policy decides what an identity may do. It is pure: callers pass
// everything it needs and translate a false answer into a redirect or a
// rejected mutation themselves.
package policy

import (
	"strings"
	"unicode/utf8"

	"fm3d/models"
)

type Action string

const (
	ViewAdminArea              Action = "view-admin-area"
	EditAnyContent             Action = "edit-any-content"
	DeleteAnyContent           Action = "delete-any-content"
	PublishContent             Action = "publish-content"
	UploadAsset                Action = "upload-asset"
	ManageIdentities           Action = "manage-identities"
	ChangeOtherIdentityRole    Action = "change-other-identity-role"
	ResetOtherIdentityPassword Action = "reset-other-identity-password"
	CreateOwnContent           Action = "create-own-content"
	EditOwnContent             Action = "edit-own-content"
	AwardBadge                 Action = "award-badge"
	EditOwnProfile             Action = "edit-own-profile"
	WriteOwnJournal            Action = "write-own-journal"
)

// MinBioLength is how long a biography must be before its owner may endorse
// other people's work or upload their own.
const MinBioLength = 10

// Context is the extra information some actions depend on. Zero values are
// fine for actions that don't look at it.
type Context struct {
	ActorID  string
	ActorBio string
	// OwnerID is the attributed author of the content acted upon, empty if
	// there is none.
	OwnerID string
}

// Can reports whether role may perform action. An empty role is an
// anonymous visitor.
func Can(role models.Role, action Action, ctx Context) bool {
	if !role.Valid() {
		return false
	}
	switch action {
	case ViewAdminArea, ManageIdentities, ChangeOtherIdentityRole, ResetOtherIdentityPassword:
		return role == models.RoleSuperadmin
	case EditAnyContent, DeleteAnyContent, PublishContent, UploadAsset:
		return IsContentEditor(role)
	case CreateOwnContent, EditOwnProfile, WriteOwnJournal:
		return true
	case EditOwnContent:
		if IsContentEditor(role) {
			return true
		}
		return ctx.ActorID != "" && ctx.ActorID == ctx.OwnerID
	case AwardBadge:
		return HasBio(ctx.ActorBio) && (ctx.OwnerID == "" || ctx.OwnerID != ctx.ActorID)
	}
	return false
}

// IsContentEditor reports whether role belongs to the content-editing tier.
// ADMIN is accepted here and nowhere else.
func IsContentEditor(role models.Role) bool {
	return role == models.RoleSuperadmin || role == models.RoleAdmin
}

// HasBio reports whether bio is long enough to count as an introduction.
func HasBio(bio string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(bio)) >= MinBioLength
}
