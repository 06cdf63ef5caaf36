package identity

import (
	"testing"
	"time"

	"projectbank/cmd/security/password"
)

func fastHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func sampleInput(email, roll string) CreateUserInput {
	return CreateUserInput{
		FirstName:  "Asha",
		LastName:   "Meena",
		Email:      email,
		RollNumber: roll,
		Department: "Computer Science",
		Semester:   5,
		Password:   "Rcew2023cs",
		Now:        time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func mustNewULIDLike(t *testing.T) string {
	t.Helper()

	id, err := NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	return id
}
