package authorization

import (
	"context"
	_ "embed"
	"errors"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectProfile      = "profile"
	ObjectService      = "service"
	ObjectBooking      = "booking"
	ObjectReview       = "review"
	ObjectStats        = "stats"
	ObjectNotification = "notification"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionCancel = "cancel"
	ActionStream = "stream"

	// ActionTransition moves a booking through the provider side of its lifecycle.
	ActionTransition = "transition"
)

const (
	roleMember   = "role:member"
	roleCustomer = "role:customer"
	roleProvider = "role:provider"
)

var (
	ErrInvalidRole = errors.New("invalid_role")
	ErrForbidden   = errors.New("forbidden")
)

// Service answers role gates. Ownership of a particular booking or listing
// is decided by the domain services, not here.
type Service interface {
	Authorize(ctx context.Context, role, object, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer persists policies through the gorm adapter and seeds the
// built-in role grants.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

// NewMemoryEnforcer holds the seeded policies in memory only.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role, object, action string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "customer" && role != "provider" {
		return ErrInvalidRole
	}

	allowed, err := s.enforcer.Enforce("role:"+role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// any signed-in user
		{roleMember, ObjectProfile, ActionView},
		{roleMember, ObjectProfile, ActionUpdate},
		{roleMember, ObjectBooking, ActionView},
		{roleMember, ObjectStats, ActionView},
		{roleMember, ObjectNotification, ActionStream},

		{roleCustomer, ObjectBooking, ActionCreate},
		{roleCustomer, ObjectBooking, ActionCancel},
		{roleCustomer, ObjectReview, ActionCreate},

		{roleProvider, ObjectBooking, ActionTransition},
		{roleProvider, ObjectService, ActionView},
		{roleProvider, ObjectService, ActionCreate},
		{roleProvider, ObjectService, ActionUpdate},
		{roleProvider, ObjectService, ActionDelete},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{roleCustomer, roleMember},
		{roleProvider, roleMember},
	}
	for _, g := range groupings {
		if _, err := enforcer.AddGroupingPolicy(g); err != nil {
			return err
		}
	}
	return nil
}
