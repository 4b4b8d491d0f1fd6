package services

import (
	"context"
	"errors"
	"strings"

	"billing-backend/internal/auth"
	"billing-backend/internal/billing"
	"billing-backend/internal/models"
	"billing-backend/internal/repositories"
)

type UserService struct {
	db         DB
	users      *repositories.UserRepository
	customers  *repositories.CustomerRepository
	jwtManager *auth.JWTManager
}

func NewUserService(db DB, users *repositories.UserRepository, customers *repositories.CustomerRepository, jwtManager *auth.JWTManager) *UserService {
	return &UserService{db: db, users: users, customers: customers, jwtManager: jwtManager}
}

// Register creates an operator account.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if strings.TrimSpace(req.Username) == "" || len(req.Password) < 6 {
		return nil, billing.InvalidArgumentf("username and a password of at least 6 characters are required")
	}
	role := req.Role
	if role == "" {
		role = models.RoleAdmin
	}
	if role != models.RoleAdmin && role != models.RoleCustomer {
		return nil, billing.InvalidArgumentf("unknown role %q", role)
	}

	exists, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, billing.Conflictf("username %q is taken", req.Username)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAdmin provisions another operator account. The role is forced to
// admin regardless of the request.
func (s *UserService) CreateAdmin(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	req.Role = models.RoleAdmin
	return s.Register(ctx, req)
}

// Login verifies credentials and issues a JWT.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return nil, billing.InvalidArgumentf("invalid credentials")
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, billing.InvalidArgumentf("invalid credentials")
	}

	token, err := s.jwtManager.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &models.TokenResponse{Token: token}, nil
}

// CustomerLogin authenticates a customer by uuid and phone and issues a
// customer-scoped token.
func (s *UserService) CustomerLogin(ctx context.Context, req *models.CustomerLoginRequest) (*models.TokenResponse, error) {
	customer, err := s.customers.GetByUUID(ctx, s.db, req.UUID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return nil, billing.InvalidArgumentf("invalid credentials")
		}
		return nil, err
	}
	if customer.Phone != req.Phone {
		return nil, billing.InvalidArgumentf("invalid credentials")
	}

	token, err := s.jwtManager.GenerateCustomerToken(customer)
	if err != nil {
		return nil, err
	}
	return &models.TokenResponse{Token: token}, nil
}
