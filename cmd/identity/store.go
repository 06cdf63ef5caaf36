package identity

import (
	"context"
	"strings"
	"time"
)

// User is a registered student.
type User struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	EmailNorm  string
	RollNumber string
	Department string
	Semester   int

	// PasswordHash is the encoded Argon2id hash; never rendered or logged.
	PasswordHash string

	CreatedAt time.Time
}

// DisplayName is the name shown in the portal header.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// SemesterAlumni is stored for graduates; 1 to 8 are current semesters.
const SemesterAlumni = 9

// CreateUserInput describes a registration. Password is the plain password;
// stores hash it before persisting.
type CreateUserInput struct {
	FirstName  string
	LastName   string
	Email      string
	RollNumber string
	Department string
	Semester   int
	Password   string
	Now        time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	// CreateUser returns ConflictError{Field: "email"|"roll_number"} on duplicates.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	// GetUserByEmail matches case-insensitively; NotFoundError if absent.
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}

// prepared is a validated, normalized CreateUserInput shared by the stores.
type prepared struct {
	user User
}

func prepareUser(op string, in CreateUserInput, hasher PasswordHasher) (prepared, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	email := strings.TrimSpace(in.Email)
	roll := NormalizeRollNumber(in.RollNumber)

	switch {
	case first == "" || last == "":
		return prepared{}, invalid(op, "first and last name are required")
	case email == "":
		return prepared{}, invalid(op, "email is required")
	case !ValidRollNumber(roll):
		return prepared{}, invalid(op, "malformed roll number")
	case strings.TrimSpace(in.Department) == "":
		return prepared{}, invalid(op, "department is required")
	case in.Semester < 1 || in.Semester > SemesterAlumni:
		return prepared{}, invalid(op, "semester out of range")
	case strings.TrimSpace(in.Password) == "":
		return prepared{}, invalid(op, "password is required")
	}

	hash, err := hasher.Hash(in.Password)
	if err != nil {
		return prepared{}, invalid(op, err.Error())
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := NewULID(now)
	if err != nil {
		return prepared{}, err
	}

	return prepared{user: User{
		ID:           id,
		FirstName:    first,
		LastName:     last,
		Email:        email,
		EmailNorm:    NormalizeEmail(email),
		RollNumber:   roll,
		Department:   strings.TrimSpace(in.Department),
		Semester:     in.Semester,
		PasswordHash: hash,
		CreatedAt:    now,
	}}, nil
}
