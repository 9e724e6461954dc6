package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/communityhub/platform/internal/db/models"
)

var userCols = []string{"id", "username", "display_name", "email", "password_hash", "role", "status",
	"bio", "avatar_url", "trust_level", "reputation_points", "email_verified", "must_change_password",
	"oidc_subject", "last_login_at", "created_at"}

func sampleUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow("user-1", "ayse", "Ayşe", "ayse@example.com", "$2a$12$hash", "user", "active",
			nil, nil, 1, 40, true, false, nil, nil, time.Now())
}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewUserRepository(db), mock
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func TestGetUserByID_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs("user-1").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetUserByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Username != "ayse" || user.ReputationPoints != 40 {
		t.Errorf("user = %+v", user)
	}
	if user.Name() != "Ayşe" {
		t.Errorf("Name() = %s, want Ayşe", user.Name())
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userCols))

	user, err := repo.GetUserByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
}

func TestGetUserByID_DBError(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").WillReturnError(errDB)

	if _, err := repo.GetUserByID(context.Background(), "user-1"); !errors.Is(err, errDB) {
		t.Errorf("err = %v, want wrapped errDB", err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE LOWER\\(email\\) = LOWER\\(\\$1\\)").
		WithArgs("Ayse@Example.com").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetUserByEmail(context.Background(), "Ayse@Example.com")
	if err != nil || user == nil {
		t.Fatalf("GetUserByEmail = %v, %v", user, err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE username").
		WithArgs("ayse").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetUserByUsername(context.Background(), "ayse")
	if err != nil || user == nil {
		t.Fatalf("GetUserByUsername = %v, %v", user, err)
	}
}

func TestGetUserByOIDCSubject(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE oidc_subject").
		WithArgs("sub-123").
		WillReturnRows(sqlmock.NewRows(userCols))

	user, err := repo.GetUserByOIDCSubject(context.Background(), "sub-123")
	if err != nil || user != nil {
		t.Fatalf("GetUserByOIDCSubject = %v, %v; want nil, nil", user, err)
	}
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

func TestCreateUser_Defaults(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "ayse", nil, "ayse@example.com", "hash", "user", "active",
			false, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	u := &models.User{Username: "ayse", Email: "ayse@example.com", PasswordHash: "hash"}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == "" {
		t.Error("expected generated ID")
	}
	if u.Role != "user" || u.Status != models.UserStatusActive {
		t.Errorf("role/status = %s/%s", u.Role, u.Status)
	}
	expectMet(t, mock)
}

func TestCreateUser_Duplicate(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateUser(context.Background(), &models.User{Username: "ayse", Email: "a@example.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestCreateUserWithMembership_Commits(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tenant_members").
		WithArgs("tenant-1", sqlmock.AnyArg(), "member", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u := &models.User{Username: "zeynep", Email: "z@example.com"}
	if err := repo.CreateUserWithMembership(context.Background(), u, "tenant-1", "member"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == "" {
		t.Error("expected generated id")
	}
	expectMet(t, mock)
}

func TestCreateUserWithMembership_RollsBackOnMemberFailure(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tenant_members").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.CreateUserWithMembership(context.Background(),
		&models.User{Username: "zeynep", Email: "z@example.com"}, "tenant-1", "member")
	if err == nil {
		t.Fatal("expected error")
	}
	expectMet(t, mock)
}

func TestCreateUserWithMembership_Duplicate(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateUserWithMembership(context.Background(),
		&models.User{Username: "zeynep", Email: "z@example.com"}, "tenant-1", "member")
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
	expectMet(t, mock)
}

func TestUpdatePassword_ClearsForcedChange(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("UPDATE users SET password_hash = \\$2, must_change_password = FALSE").
		WithArgs("user-1", "newhash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdatePassword(context.Background(), "user-1", "newhash"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectMet(t, mock)
}

func TestTouchLastLogin(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("UPDATE users SET last_login_at").
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TouchLastLogin(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLinkOIDCSubject_Duplicate(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("UPDATE users SET oidc_subject").WillReturnError(&pq.Error{Code: "23505"})

	if err := repo.LinkOIDCSubject(context.Background(), "user-1", "sub"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func newSessionRepo(t *testing.T) (*SessionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewSessionRepository(db), mock
}

func TestCreateSession_KeepsPreassignedID(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("INSERT INTO user_sessions").
		WithArgs("sess-1", "user-1", nil, "hash", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := &models.Session{ID: "sess-1", UserID: "user-1", TokenHash: "hash", ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "sess-1" {
		t.Errorf("ID = %s, want sess-1", s.ID)
	}
	expectMet(t, mock)
}

func TestCreateSession_GeneratesID(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("INSERT INTO user_sessions").WillReturnResult(sqlmock.NewResult(1, 1))

	s := &models.Session{UserID: "user-1", TokenHash: "hash"}
	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestGetSession(t *testing.T) {
	repo, mock := newSessionRepo(t)
	cols := []string{"id", "user_id", "tenant_id", "token_hash", "ip", "user_agent", "expires_at", "created_at"}
	exp := time.Now().Add(time.Hour)
	mock.ExpectQuery("SELECT.*FROM user_sessions.*WHERE id").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("sess-1", "user-1", "tenant-1", "hash", "127.0.0.1", nil, exp, time.Now()))

	s, err := repo.GetSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TenantID == nil || *s.TenantID != "tenant-1" {
		t.Errorf("tenant_id = %v", s.TenantID)
	}
	if s.Expired(time.Now()) {
		t.Error("session should not be expired")
	}
}

func TestDeleteOtherSessions(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("DELETE FROM user_sessions WHERE user_id = \\$1 AND id <> \\$2").
		WithArgs("user-1", "sess-keep").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteOtherSessions(context.Background(), "user-1", "sess-keep")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := newSessionRepo(t)
	now := time.Now()
	mock.ExpectExec("DELETE FROM user_sessions WHERE expires_at < \\$1").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := repo.DeleteExpired(context.Background(), now)
	if err != nil || n != 5 {
		t.Fatalf("DeleteExpired = %d, %v; want 5, nil", n, err)
	}
}

func TestDeleteSession_DBError(t *testing.T) {
	repo, mock := newSessionRepo(t)
	mock.ExpectExec("DELETE FROM user_sessions WHERE id").WillReturnError(errDB)

	if err := repo.DeleteSession(context.Background(), "sess-1"); err == nil {
		t.Error("expected error, got nil")
	}
}
