package identity

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_CreateAndLookup(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx := context.Background()

	u, err := s.CreateUser(ctx, sampleInput("Asha@RCEW.ac.in", "23erwcs029"))
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.RollNumber != "23ERWCS029" {
		t.Fatalf("roll not normalized: %q", u.RollNumber)
	}
	if u.EmailNorm != "asha@rcew.ac.in" {
		t.Fatalf("email not normalized: %q", u.EmailNorm)
	}
	if u.PasswordHash == "" || u.PasswordHash == "Rcew2023cs" {
		t.Fatalf("password not hashed")
	}
	if u.DisplayName() != "Asha Meena" {
		t.Fatalf("display name=%q", u.DisplayName())
	}

	got, err := s.GetUserByEmail(ctx, "  ASHA@rcew.AC.IN ")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("id mismatch")
	}

	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if byID.Email != u.Email {
		t.Fatalf("email mismatch")
	}

	if err := CheckPassword(fastHasher(), got, "Rcew2023cs"); err != nil {
		t.Fatalf("CheckPassword: %v", err)
	}
	if err := CheckPassword(fastHasher(), got, "wrong-Pass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestMemoryStore_Conflicts(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, sampleInput("a@rcew.ac.in", "23ERWCS029")); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err := s.CreateUser(ctx, sampleInput("A@RCEW.ac.in", "23ERWCS030"))
	if !IsConflict(err) || ConflictField(err) != "email" {
		t.Fatalf("expected email conflict, got %v", err)
	}

	_, err = s.CreateUser(ctx, sampleInput("b@rcew.ac.in", "23erwcs029"))
	if !IsConflict(err) || ConflictField(err) != "roll_number" {
		t.Fatalf("expected roll_number conflict, got %v", err)
	}
}

func TestMemoryStore_InvalidInput(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx := context.Background()

	cases := []struct {
		name string
		mut  func(*CreateUserInput)
	}{
		{name: "missing name", mut: func(in *CreateUserInput) { in.FirstName = " " }},
		{name: "missing email", mut: func(in *CreateUserInput) { in.Email = "" }},
		{name: "bad roll", mut: func(in *CreateUserInput) { in.RollNumber = "CS029" }},
		{name: "no department", mut: func(in *CreateUserInput) { in.Department = "" }},
		{name: "semester", mut: func(in *CreateUserInput) { in.Semester = 10 }},
		{name: "weak password", mut: func(in *CreateUserInput) { in.Password = "short" }},
	}

	for _, tc := range cases {
		in := sampleInput("x@rcew.ac.in", "23ERWIT001")
		tc.mut(&in)
		if _, err := s.CreateUser(ctx, in); !IsInvalidInput(err) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx := context.Background()

	if _, err := s.GetUserByEmail(ctx, "nobody@rcew.ac.in"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.GetUserByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.CreateUser(ctx, sampleInput("c@rcew.ac.in", "23ERWCS031")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
