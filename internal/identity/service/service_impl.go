package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/servicehub/internal/clock"
	"github.com/smallbiznis/servicehub/internal/config"
	"github.com/smallbiznis/servicehub/internal/identity/domain"
	"github.com/smallbiznis/servicehub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Clock  clock.Clock
	Config config.Config

	// BcryptCost overrides bcrypt.DefaultCost when non-zero.
	BcryptCost int `optional:"true" name:"bcrypt_cost"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	validate *validator.Validate

	secret     []byte
	issuer     string
	tokenTTL   time.Duration
	bcryptCost int
}

func New(p Params) (domain.Service, error) {
	secret := strings.TrimSpace(p.Config.Auth.JWTSecret)
	if secret == "" {
		if p.Config.IsProduction() {
			return nil, errors.New("AUTH_JWT_SECRET is required in production")
		}
		secret = "servicehub-development-secret"
	}
	ttl := p.Config.Auth.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	cost := p.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Service{
		db:         p.DB,
		log:        p.Log.Named("identity.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      p.Clock,
		validate:   validator.New(),
		secret:     []byte(secret),
		issuer:     p.Config.AppName,
		tokenTTL:   ttl,
		bcryptCost: cost,
	}, nil
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.AuthResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.City = strings.TrimSpace(req.City)
	if err := s.validate.Struct(req); err != nil {
		return domain.AuthResponse{}, validationError(err)
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, req.Email)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	if existing != nil {
		return domain.AuthResponse{}, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return domain.AuthResponse{}, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Phone:        req.Phone,
		City:         req.City,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.AuthResponse{}, domain.ErrEmailTaken
		}
		return domain.AuthResponse{}, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	s.log.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return domain.AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return domain.AuthResponse{}, validationError(err)
	}

	user, err := s.repo.FindByEmail(ctx, s.db, req.Email)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	if user == nil {
		return domain.AuthResponse{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return domain.AuthResponse{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.AuthResponse{}, domain.ErrInactiveUser
	}

	token, err := s.issueToken(*user)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	return domain.AuthResponse{Token: token, User: *user}, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (domain.Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Actor{}, domain.ErrUnauthorized
	}
	id, err := s.parseToken(token)
	if err != nil {
		return domain.Actor{}, err
	}

	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Actor{}, err
	}
	if user == nil {
		return domain.Actor{}, domain.ErrUnauthorized
	}
	if !user.IsActive {
		return domain.Actor{}, domain.ErrInactiveUser
	}
	return domain.Actor{ID: user.ID, Role: user.Role}, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id snowflake.ID, req domain.UpdateProfileRequest) (domain.User, error) {
	trim := func(v *string) {
		if v != nil {
			*v = strings.TrimSpace(*v)
		}
	}
	trim(req.Name)
	trim(req.Phone)
	trim(req.City)
	trim(req.Bio)
	if err := s.validate.Struct(req); err != nil {
		return domain.User{}, validationError(err)
	}

	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.City != nil {
		user.City = *req.City
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	user.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateProfile(ctx, s.db, user); err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

// validationError maps the first failing field onto a domain sentinel.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInvalidProfile
	}
	switch verrs[0].Field() {
	case "Name":
		return domain.ErrInvalidName
	case "Email":
		return domain.ErrInvalidEmail
	case "Password":
		return domain.ErrInvalidPassword
	case "Role":
		return domain.ErrInvalidRole
	default:
		return domain.ErrInvalidProfile
	}
}
