package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

var testJWTConfig = config.JWTConfig{
	Secret:        "test-secret-key",
	AccessExpiry:  60,
	RefreshExpiry: 7,
}

func newTestUserService() (UserService, *mockUserRepository, *mockRefreshTokenRepository) {
	userRepo := newMockUserRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	return NewUserService(userRepo, refreshTokenRepo, testJWTConfig), userRepo, refreshTokenRepo
}

func registerInput(email, password string) RegisterInput {
	return RegisterInput{
		Name:     "Ada",
		Email:    email,
		Password: password,
		Phone:    "555-0100",
		Address:  "1 Main St",
		Answer:   "Blue",
	}
}

// fewer cases: every case pays for bcrypt at cost 10
func bcryptParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	return parameters
}

func TestProperty_RegistrationHashesPasswordAndAnswer(t *testing.T) {
	properties := gopter.NewProperties(bcryptParameters())

	properties.Property("password and answer are stored as bcrypt hashes", prop.ForAll(
		func(email string, password string) bool {
			service, userRepo, _ := newTestUserService()
			ctx := context.Background()

			user, err := service.Register(ctx, registerInput(email, password))
			if err != nil {
				t.Logf("Registration failed: %v", err)
				return false
			}

			stored, err := userRepo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("Could not find stored user: %v", err)
				return false
			}

			if stored.PasswordHash == password || stored.AnswerHash == "blue" {
				return false
			}

			return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil &&
				bcrypt.CompareHashAndPassword([]byte(user.AnswerHash), []byte("blue")) == nil &&
				user.Role == domain.RoleCustomer
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegister_Rejections(t *testing.T) {
	service, _, _ := newTestUserService()
	ctx := context.Background()

	if _, err := service.Register(ctx, registerInput("ada@example.com", "12345")); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("Expected ErrPasswordTooShort, got %v", err)
	}

	if _, err := service.Register(ctx, registerInput("ada@example.com", "secret1")); err != nil {
		t.Fatalf("Registration failed: %v", err)
	}

	// Emails are compared case-insensitively
	if _, err := service.Register(ctx, registerInput(" ADA@example.com ", "secret1")); !errors.Is(err, repository.ErrUserAlreadyExists) {
		t.Errorf("Expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestProperty_JWTTokensContainRequiredClaims(t *testing.T) {
	properties := gopter.NewProperties(bcryptParameters())

	properties.Property("access tokens carry user ID and role", prop.ForAll(
		func(email string, password string, role domain.Role) bool {
			service, userRepo, _ := newTestUserService()
			ctx := context.Background()

			user, err := service.Register(ctx, registerInput(email, password))
			if err != nil {
				return false
			}
			user.Role = role
			userRepo.users[email] = user

			accessToken, _, _, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("Login failed: %v", err)
				return false
			}

			claims, err := service.ValidateToken(accessToken)
			if err != nil {
				t.Logf("Token validation failed: %v", err)
				return false
			}

			return claims.UserID == user.ID &&
				claims.Role == role &&
				claims.ExpiresAt != nil &&
				claims.IssuedAt != nil
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
		gen.OneConstOf(domain.RoleCustomer, domain.RoleAdmin),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLogin_WrongPassword(t *testing.T) {
	service, _, _ := newTestUserService()
	ctx := context.Background()

	if _, err := service.Register(ctx, registerInput("ada@example.com", "secret1")); err != nil {
		t.Fatalf("Registration failed: %v", err)
	}

	if _, _, _, err := service.Login(ctx, "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, _, err := service.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	service, _, _ := newTestUserService()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role: domain.RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, _ := expired.SignedString([]byte(testJWTConfig.Secret))
	if _, err := service.ValidateToken(expiredToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: domain.RoleAdmin})
	forgedToken, _ := forged.SignedString([]byte("another-secret"))
	if _, err := service.ValidateToken(forgedToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}

	unknownRole := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: domain.Role(7)})
	unknownRoleToken, _ := unknownRole.SignedString([]byte(testJWTConfig.Secret))
	if _, err := service.ValidateToken(unknownRoleToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for unknown role, got %v", err)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	service, _, refreshTokenRepo := newTestUserService()
	ctx := context.Background()

	if _, err := service.Register(ctx, registerInput("ada@example.com", "secret1")); err != nil {
		t.Fatalf("Registration failed: %v", err)
	}

	_, refreshToken, user, err := service.Login(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	newAccessToken, err := service.RefreshToken(ctx, refreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	claims, err := service.ValidateToken(newAccessToken)
	if err != nil || claims.UserID != user.ID {
		t.Fatalf("Refreshed token invalid: %v", err)
	}

	if err := service.Logout(ctx, refreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := service.RefreshToken(ctx, refreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken after logout, got %v", err)
	}
	if _, err := refreshTokenRepo.FindByToken(ctx, refreshToken); !errors.Is(err, repository.ErrRefreshTokenRevoked) {
		t.Errorf("Token should be revoked in repository, got %v", err)
	}

	// Logging out twice is harmless
	if err := service.Logout(ctx, "unknown-token"); err != nil {
		t.Errorf("Logout of unknown token should succeed, got %v", err)
	}
}

func TestRefreshToken_Expired(t *testing.T) {
	service, _, refreshTokenRepo := newTestUserService()
	ctx := context.Background()

	if _, err := service.Register(ctx, registerInput("ada@example.com", "secret1")); err != nil {
		t.Fatalf("Registration failed: %v", err)
	}
	_, refreshToken, _, err := service.Login(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	refreshTokenRepo.tokens[refreshToken].ExpiresAt = time.Now().Add(-time.Second)

	if _, err := service.RefreshToken(ctx, refreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestForgotPassword(t *testing.T) {
	service, _, refreshTokenRepo := newTestUserService()
	ctx := context.Background()

	if _, err := service.Register(ctx, registerInput("ada@example.com", "secret1")); err != nil {
		t.Fatalf("Registration failed: %v", err)
	}
	_, refreshToken, _, err := service.Login(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := service.ForgotPassword(ctx, "ada@example.com", "red", "newsecret"); !errors.Is(err, ErrWrongEmailOrAnswer) {
		t.Errorf("Expected ErrWrongEmailOrAnswer for wrong answer, got %v", err)
	}
	if err := service.ForgotPassword(ctx, "bob@example.com", "blue", "newsecret"); !errors.Is(err, ErrWrongEmailOrAnswer) {
		t.Errorf("Expected ErrWrongEmailOrAnswer for unknown email, got %v", err)
	}
	if err := service.ForgotPassword(ctx, "ada@example.com", "blue", "123"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("Expected ErrPasswordTooShort, got %v", err)
	}

	// The answer is matched case-insensitively
	if err := service.ForgotPassword(ctx, "ada@example.com", "  BLUE ", "newsecret"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}

	if _, _, _, err := service.Login(ctx, "ada@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("Old password must stop working")
	}
	if _, _, _, err := service.Login(ctx, "ada@example.com", "newsecret"); err != nil {
		t.Errorf("New password should work: %v", err)
	}
	if _, err := refreshTokenRepo.FindByToken(ctx, refreshToken); !errors.Is(err, repository.ErrRefreshTokenRevoked) {
		t.Error("Sessions from before the reset must be revoked")
	}
}

func TestUpdateProfile(t *testing.T) {
	service, _, _ := newTestUserService()
	ctx := context.Background()

	user, err := service.Register(ctx, registerInput("ada@example.com", "secret1"))
	if err != nil {
		t.Fatalf("Registration failed: %v", err)
	}

	short := "123"
	if _, err := service.UpdateProfile(ctx, user.ID, ProfileUpdate{Password: &short}); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("Expected ErrPasswordTooShort, got %v", err)
	}

	address := "9 Elm St"
	blank := "   "
	updated, err := service.UpdateProfile(ctx, user.ID, ProfileUpdate{Address: &address, Name: &blank})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Address != address {
		t.Errorf("Expected address %q, got %q", address, updated.Address)
	}
	if updated.Name != "Ada" {
		t.Errorf("Blank name must keep the old one, got %q", updated.Name)
	}

	if _, _, _, err := service.Login(ctx, "ada@example.com", "secret1"); err != nil {
		t.Errorf("Password must be unchanged: %v", err)
	}
}
