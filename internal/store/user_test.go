package store

import (
	"testing"
	"time"

	"github.com/ciipa/plataforma/internal/database"
	"github.com/ciipa/plataforma/internal/model"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("ana@example.com", "hash", model.RoleStudent)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "ana@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "ana@example.com")
	}
	if u.Role != model.RoleStudent {
		t.Errorf("role = %q, want %q", u.Role, model.RoleStudent)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("ana@example.com", "hash", model.RoleStudent); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("ana@example.com", "hash2", model.RoleAdmin); err == nil {
		t.Fatal("expected error for duplicate email, got nil")
	}
}

func TestUserCreateRejectsUnknownRole(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("ana@example.com", "hash", "superuser"); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("ana@example.com", "hash", model.RoleAdmin); err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := us.GetByEmail("ana@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", u.Role, model.RoleAdmin)
	}
}

func TestUserGetByEmailNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent email")
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserCountByRole(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("a@example.com", "h", model.RoleAdmin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	for _, email := range []string{"s1@example.com", "s2@example.com"} {
		if _, err := us.Create(email, "h", model.RoleStudent); err != nil {
			t.Fatalf("create student: %v", err)
		}
	}

	n, err := us.CountByRole(model.RoleStudent)
	if err != nil {
		t.Fatalf("count by role: %v", err)
	}
	if n != 2 {
		t.Errorf("student count = %d, want 2", n)
	}
	n, err = us.CountByRole(model.RoleAdmin)
	if err != nil {
		t.Fatalf("count by role: %v", err)
	}
	if n != 1 {
		t.Errorf("admin count = %d, want 1", n)
	}
}

func TestUserTwoFactorCodeLifecycle(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("ana@example.com", "hash", model.RoleAdmin)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	if err := us.SetTwoFactorCode(u.ID, "123456", expires); err != nil {
		t.Fatalf("set code: %v", err)
	}

	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.TwoFactorCode == nil || *got.TwoFactorCode != "123456" {
		t.Fatalf("code = %v, want 123456", got.TwoFactorCode)
	}
	if got.TwoFactorExpiresAt == nil || !got.TwoFactorExpiresAt.Equal(expires) {
		t.Errorf("expires = %v, want %v", got.TwoFactorExpiresAt, expires)
	}
	if got.TwoFactorAttempts != 0 {
		t.Errorf("attempts = %d, want 0", got.TwoFactorAttempts)
	}

	for want := 1; want <= 3; want++ {
		n, err := us.IncrementTwoFactorAttempts(u.ID)
		if err != nil {
			t.Fatalf("increment attempts: %v", err)
		}
		if n != want {
			t.Errorf("attempts = %d, want %d", n, want)
		}
	}

	if err := us.ClearTwoFactorCode(u.ID); err != nil {
		t.Fatalf("clear code: %v", err)
	}
	got, err = us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if got.TwoFactorCode != nil {
		t.Error("expected nil code after clear")
	}
	if got.TwoFactorAttempts != 0 {
		t.Errorf("attempts after clear = %d, want 0", got.TwoFactorAttempts)
	}
}

func TestUserSetTwoFactorCodeResetsAttempts(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("ana@example.com", "hash", model.RoleAdmin)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := us.SetTwoFactorCode(u.ID, "111111", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("set code: %v", err)
	}
	if _, err := us.IncrementTwoFactorAttempts(u.ID); err != nil {
		t.Fatalf("increment attempts: %v", err)
	}

	// A fresh code starts the attempt counter over.
	if err := us.SetTwoFactorCode(u.ID, "222222", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("set second code: %v", err)
	}
	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.TwoFactorAttempts != 0 {
		t.Errorf("attempts = %d, want 0", got.TwoFactorAttempts)
	}
}

func TestUserUpdatePassword(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("ana@example.com", "old-hash", model.RoleStudent)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := us.UpdatePassword(u.ID, "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Errorf("hash = %q, want %q", got.PasswordHash, "new-hash")
	}
}

func TestUserDelete(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("ana@example.com", "hash", model.RoleStudent)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := us.Delete(u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
