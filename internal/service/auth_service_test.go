package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type mockAuthRepo struct {
	persons       map[string]*models.Person
	refreshTokens map[string]*models.RefreshToken
	lastLogin     map[string]time.Time
	passwords     map[string]string
	audits        []models.AuditLog
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		persons:       map[string]*models.Person{},
		refreshTokens: map[string]*models.RefreshToken{},
		lastLogin:     map[string]time.Time{},
		passwords:     map[string]string{},
	}
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.Person, error) {
	if person, ok := m.persons[id]; ok {
		return person, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin[id] = ts
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwords[id] = passwordHash
	if person, ok := m.persons[id]; ok {
		person.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := m.refreshTokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

func seedAuthPerson(t *testing.T, repo *mockAuthRepo, id string, role models.Role, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo.persons[id] = &models.Person{
		ID:           id,
		FullName:     "Person " + id,
		Email:        id + "@example.edu",
		Role:         role,
		PasswordHash: string(hash),
		Active:       true,
	}
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthRepo) {
	t.Helper()
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "unit-test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "unireg-api",
	})
	return svc, repo
}

func TestLogin(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "24BET10001", models.RoleStudent, "s3cret!")

	resp, err := svc.Login(context.Background(), models.LoginRequest{UserID: "24BET10001", Password: "s3cret!"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "24BET10001", resp.User.ID)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.Contains(t, repo.lastLogin, "24BET10001")
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionLogin, repo.audits[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "24BET10001", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "24BET10001", models.RoleStudent, "s3cret!")

	_, err := svc.Login(context.Background(), models.LoginRequest{UserID: "24BET10001", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, "invalid user id or password", appErrors.FromError(err).Message)
}

func TestLoginMalformedRegistrationNumber(t *testing.T) {
	svc, _ := newAuthFixture(t)

	// Shaped like a registration number, so the format check runs before
	// any lookup and reports the specific problem.
	_, err := svc.Login(context.Background(), models.LoginRequest{UserID: "24XYZ10001", Password: "s3cret!"})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "Invalid department code 'XYZ'")
}

func TestLoginStaffIDSkipsRegistrationNumberCheck(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "P001", models.RoleProfessor, "s3cret!")

	resp, err := svc.Login(context.Background(), models.LoginRequest{UserID: "P001", Password: "s3cret!"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleProfessor, resp.User.Role)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "R001", models.RoleRegistrar, "s3cret!")
	repo.persons["R001"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{UserID: "R001", Password: "s3cret!"})
	require.Error(t, err)
	assert.Equal(t, "account is inactive", appErrors.FromError(err).Message)
}

func TestRefreshTokenRotation(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "24BET10001", models.RoleStudent, "s3cret!")

	login, err := svc.Login(context.Background(), models.LoginRequest{UserID: "24BET10001", Password: "s3cret!"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	// The used token cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, "refresh token is expired or revoked", appErrors.FromError(err).Message)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "24BET10001", models.RoleStudent, "s3cret!")

	login, err := svc.Login(context.Background(), models.LoginRequest{UserID: "24BET10001", Password: "s3cret!"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), "24BET10001", models.LogoutRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestLogoutForeignToken(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "24BET10001", models.RoleStudent, "s3cret!")
	seedAuthPerson(t, repo, "24BET10002", models.RoleStudent, "s3cret!")

	login, err := svc.Login(context.Background(), models.LoginRequest{UserID: "24BET10001", Password: "s3cret!"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), "24BET10002", models.LogoutRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, "token does not belong to user", appErrors.FromError(err).Message)
}

func TestChangePassword(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "24BET10001", models.RoleStudent, "s3cret!")

	login, err := svc.Login(context.Background(), models.LoginRequest{UserID: "24BET10001", Password: "s3cret!"})
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), "24BET10001", models.ChangePasswordRequest{OldPassword: "s3cret!", NewPassword: "n3wpass!"})
	require.NoError(t, err)
	// Existing sessions are revoked after a password change.
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	_, err = svc.Login(context.Background(), models.LoginRequest{UserID: "24BET10001", Password: "s3cret!"})
	require.Error(t, err)
	_, err = svc.Login(context.Background(), models.LoginRequest{UserID: "24BET10001", Password: "n3wpass!"})
	require.NoError(t, err)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "24BET10001", models.RoleStudent, "s3cret!")

	err := svc.ChangePassword(context.Background(), "24BET10001", models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "n3wpass!"})
	require.Error(t, err)
	assert.Equal(t, "old password does not match", appErrors.FromError(err).Message)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedAuthPerson(t, repo, "24BET10001", models.RoleStudent, "s3cret!")

	login, err := svc.Login(context.Background(), models.LoginRequest{UserID: "24BET10001", Password: "s3cret!"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	require.Error(t, err)

	other := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: 15 * time.Minute,
	})
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
}
