package postgres

import (
	"reflect"
	"strings"
	"testing"

	"github.com/cardloop/users-api/internal/domain"
)

func TestBuildUserUpdateSkipsEmptyFields(t *testing.T) {
	update := domain.UserUpdate{Name: "Ada", Username: "ada"}
	query, args := buildUserUpdate("user-1", update)

	if !strings.Contains(query, "name = $2") || !strings.Contains(query, "username = $3") {
		t.Fatalf("unexpected SET clause: %s", query)
	}
	if strings.Contains(query, "email = ") {
		t.Fatalf("email must not be assigned when empty: %s", query)
	}
	if strings.Contains(query, "password = ") {
		t.Fatalf("password must not be assigned when absent: %s", query)
	}
	want := []any{"user-1", "Ada", "ada"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildUserUpdateIncludesHashedPassword(t *testing.T) {
	hash := []byte("$2a$12$fakehash")
	query, args := buildUserUpdate("user-2", domain.UserUpdate{Email: "a@x.com", Password: hash})

	if !strings.Contains(query, "email = $2") || !strings.Contains(query, "password = $3") {
		t.Fatalf("unexpected SET clause: %s", query)
	}
	if !strings.Contains(query, "RETURNING id, name, email, username, password, created_at") {
		t.Fatalf("update must return the resulting row: %s", query)
	}
	if len(args) != 3 || args[0] != "user-2" || args[1] != "a@x.com" {
		t.Fatalf("unexpected args: %v", args)
	}
	got, ok := args[2].([]byte)
	if !ok || string(got) != string(hash) {
		t.Fatalf("expected hashed password arg, got %v", args[2])
	}
}

func TestUserUpdateEmpty(t *testing.T) {
	if !(domain.UserUpdate{}).Empty() {
		t.Fatal("zero update should be empty")
	}
	if (domain.UserUpdate{Username: "x"}).Empty() {
		t.Fatal("update with username should not be empty")
	}
}
