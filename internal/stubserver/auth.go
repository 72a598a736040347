package stubserver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const localUsername = "username"

type tokenRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

func (s *Server) handleToken(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "could not parse form body")
	}
	if errs := s.checkStruct(req); len(errs) > 0 {
		return validationFailed(c, errs)
	}
	if !s.authenticate(req.Username, req.Password) {
		s.log.Info("login rejected", zap.String("username", req.Username))
		return fiber.NewError(fiber.StatusUnauthorized, "Incorrect credentials")
	}
	token, err := s.issueToken(req.Username)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	return c.JSON(fiber.Map{"access_token": token, "token_type": "bearer"})
}

func (s *Server) authenticate(username, password string) bool {
	hash, ok := s.users[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func (s *Server) issueToken(username string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// requireBearer rejects requests without a valid token and stores the
// subject for handlers.
func (s *Server) requireBearer(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(raw) == "" {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
	}
	subject, err := s.verifyToken(strings.TrimSpace(raw))
	if err != nil {
		s.log.Debug("token rejected", zap.Error(err))
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return fiber.NewError(fiber.StatusUnauthorized, "Could not validate credentials")
	}
	c.Locals(localUsername, subject)
	return c.Next()
}

func (s *Server) verifyToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if _, ok := s.users[subject]; !ok {
		return "", errors.New("unknown subject")
	}
	return subject, nil
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"username": c.Locals(localUsername)})
}
