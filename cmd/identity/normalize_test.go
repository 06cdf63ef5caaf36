package identity

import (
	"testing"

	"projectbank/cmd/identity/ids"
)

func TestNormalizeAndValidateRollNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{in: "23ERWCS029", want: true},
		{in: " 23erwcs029 ", want: true},
		{in: "22ERWECE101", want: true},
		{in: "23ERWC029", want: false},
		{in: "23ERWCSEX029", want: false},
		{in: "2023ERWCS029", want: false},
		{in: "23RCECS029", want: false},
		{in: "", want: false},
	}

	for _, tc := range cases {
		if got := ValidRollNumber(NormalizeRollNumber(tc.in)); got != tc.want {
			t.Fatalf("ValidRollNumber(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	if got := NormalizeEmail("  Student@RCEW.ac.IN "); got != "student@rcew.ac.in" {
		t.Fatalf("NormalizeEmail=%q", got)
	}
}

func TestNewULID(t *testing.T) {
	t.Parallel()

	id := mustNewULIDLike(t)
	if len(id) != 26 || !ids.Valid(id) {
		t.Fatalf("bad ulid %q", id)
	}
	if ids.Valid("not-a-ulid") {
		t.Fatalf("expected invalid")
	}
}
