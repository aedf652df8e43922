package participants

import (
	"context"

	"fm3d/models"
)

// PersonView is an account with its avatar resolved for display. The email
// is dropped for public listings.
type PersonView struct {
	models.User
	AvatarSrc string `json:"avatar_src"`
}

func (s *Service) View(ctx context.Context, u models.User, public bool) PersonView {
	if public {
		u.Email = ""
	}
	return PersonView{User: u, AvatarSrc: s.assets.ResolveViewableURL(ctx, u.Avatar)}
}

func (s *Service) Views(ctx context.Context, users []models.User, public bool) []PersonView {
	out := make([]PersonView, 0, len(users))
	for _, u := range users {
		out = append(out, s.View(ctx, u, public))
	}
	return out
}
