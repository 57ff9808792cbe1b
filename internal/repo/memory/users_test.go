package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/geocoder89/crewhub/internal/domain/user"
)

func TestUsersRepo_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	u, err := r.Create(ctx, "Sam@Example.com ", "hash", "Sam")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if u.Role != user.RoleUser {
		t.Fatalf("default role got %q, want user", u.Role)
	}

	got, err := r.FindByEmail(ctx, "SAM@example.COM")
	if err != nil || got.ID != u.ID {
		t.Fatalf("FindByEmail got (%+v, %v)", got, err)
	}

	if _, err := r.Create(ctx, "sam@example.com", "x", "Other"); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("duplicate create got %v, want ErrEmailTaken", err)
	}
}

func TestUsersRepo_IsAdminFailsClosed(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	ok, err := r.IsAdmin(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("IsAdmin(missing) got (%v, %v), want (false, nil)", ok, err)
	}

	u, _ := r.CreateWithRole(ctx, "boss@example.com", "h", "Boss", user.RoleAdmin)
	if ok, _ := r.IsAdmin(ctx, u.ID); !ok {
		t.Fatalf("admin user should be admin")
	}

	if _, err := r.UpdateRole(ctx, u.ID, user.RoleUser); err != nil {
		t.Fatalf("UpdateRole error: %v", err)
	}
	if ok, _ := r.IsAdmin(ctx, u.ID); ok {
		t.Fatalf("demoted user should not be admin")
	}
}

func TestUsersRepo_ListPaging(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	for _, e := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if _, err := r.Create(ctx, e, "h", e); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	page, _ := r.List(ctx, 2, 0)
	if len(page) != 2 {
		t.Fatalf("page 1 got %d users, want 2", len(page))
	}
	page, _ = r.List(ctx, 2, 2)
	if len(page) != 1 {
		t.Fatalf("page 2 got %d users, want 1", len(page))
	}
	page, _ = r.List(ctx, 2, 10)
	if len(page) != 0 {
		t.Fatalf("out of range page got %d users, want 0", len(page))
	}
}
