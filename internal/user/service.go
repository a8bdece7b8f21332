package user

import (
	"context"
	"errors"

	"sellora-core/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	Login(ctx context.Context, email, password string) (string, error)
}

type service struct {
	repo      Repository
	jwtSecret string
}

func NewService(repo Repository, jwtSecret string) Service {
	return &service{repo: repo, jwtSecret: jwtSecret}
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Login"),
	)

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// same failure as a bad password, do not reveal which
			return "", ErrInvalidCredentials
		}
		log.Error("failed to load user", zap.Error(err))
		return "", err
	}

	if !CheckPasswordHash(password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateJWT(s.jwtSecret, u)
	if err != nil {
		log.Error("failed to sign token", zap.Error(err))
		return "", err
	}

	log.Info("user logged in", zap.Uint("user_id", u.ID))
	return token, nil
}
