package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
)

type Service interface {
	BookingStats(ctx context.Context, userID snowflake.ID, role identitydomain.Role) (BookingStats, error)
	ProviderProfile(ctx context.Context, providerID snowflake.ID) (ProviderProfile, error)
}

var (
	ErrInvalidRole = errors.New("invalid_role")
	ErrNotFound    = errors.New("not_found")
)
