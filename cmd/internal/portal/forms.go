package portal

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"projectbank/cmd/identity"
	"projectbank/cmd/internal/authstate"
)

const (
	msgMissingLogin     = "Please enter both email and password"
	msgInvalidEmail     = "Please enter a valid email address"
	msgNameRequired     = "Please enter your first and last name"
	msgInvalidRoll      = "Roll number must be in format: 23ERWCS029 (e.g., year + ERW + department code + number)"
	msgDepartment       = "Please select your department"
	msgSemester         = "Please select your semester"
	msgInvalidPassword  = "Password must be at least 8 characters with uppercase, lowercase, and number"
	msgPasswordMismatch = "Password and confirm password do not match"
	msgTermsRequired    = "You must agree to the terms and conditions"

	msgWelcomeBack = "Welcome back to RCEW Project Bank!"
	msgRegistered  = "Your account has been created! Please login to continue."
	msgSignedOut   = "You have been signed out."
)

// emailPattern matches the portal's client-side check: something@something.tld.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Option is a select choice on the registration form.
type Option struct {
	Value string
	Label string
}

var departments = []Option{
	{"cse", "Computer Science Engineering"},
	{"it", "Information Technology"},
	{"ece", "Electronics & Communication Engineering"},
	{"eee", "Electrical & Electronics Engineering"},
	{"me", "Mechanical Engineering"},
	{"ce", "Civil Engineering"},
	{"che", "Chemical Engineering"},
}

var semesters = []Option{
	{"1", "1st Semester"},
	{"2", "2nd Semester"},
	{"3", "3rd Semester"},
	{"4", "4th Semester"},
	{"5", "5th Semester"},
	{"6", "6th Semester"},
	{"7", "7th Semester"},
	{"8", "8th Semester"},
	{"alumni", "Alumni"},
}

func optionValues(opts []Option) []any {
	out := make([]any, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Value)
	}
	return out
}

func optionLabel(opts []Option, value string) string {
	for _, o := range opts {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// Field names in validation.Errors come from the json tags.
type loginForm struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
	Next       string `json:"next"`
}

func parseLoginForm(r *http.Request) loginForm {
	return loginForm{
		Email:      strings.TrimSpace(r.PostFormValue("email")),
		Password:   r.PostFormValue("password"),
		RememberMe: checked(r.PostFormValue("remember_me")),
		Next:       r.PostFormValue("next"),
	}
}

// Validate returns validation.Errors keyed by form field.
func (f loginForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email,
			validation.Required.Error(msgMissingLogin),
			validation.Match(emailPattern).Error(msgInvalidEmail),
		),
		validation.Field(&f.Password, validation.Required.Error(msgMissingLogin)),
	)
}

func (f loginForm) credentials() authstate.Credentials {
	return authstate.Credentials{Email: f.Email, Password: f.Password, RememberMe: f.RememberMe}
}

type registerForm struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	RollNumber      string `json:"roll_number"`
	Department      string `json:"department"`
	Semester        string `json:"semester"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	AgreeToTerms    bool   `json:"agree_to_terms"`
}

func parseRegisterForm(r *http.Request) registerForm {
	return registerForm{
		FirstName:       strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:        strings.TrimSpace(r.PostFormValue("last_name")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		RollNumber:      identity.NormalizeRollNumber(r.PostFormValue("roll_number")),
		Department:      r.PostFormValue("department"),
		Semester:        r.PostFormValue("semester"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		AgreeToTerms:    checked(r.PostFormValue("agree_to_terms")),
	}
}

// registerFieldOrder is the order problems are reported in.
var registerFieldOrder = []string{
	"first_name", "last_name", "email", "roll_number", "department",
	"semester", "password", "confirm_password", "agree_to_terms",
}

// Validate returns validation.Errors keyed by form field.
func (f registerForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.FirstName, validation.Required.Error(msgNameRequired), validation.Length(1, 100)),
		validation.Field(&f.LastName, validation.Required.Error(msgNameRequired), validation.Length(1, 100)),
		validation.Field(&f.Email, validation.Required.Error(msgInvalidEmail), is.Email.Error(msgInvalidEmail)),
		validation.Field(&f.RollNumber, validation.By(rollNumberRule)),
		validation.Field(&f.Department, validation.Required.Error(msgDepartment), validation.In(optionValues(departments)...).Error(msgDepartment)),
		validation.Field(&f.Semester, validation.Required.Error(msgSemester), validation.In(optionValues(semesters)...).Error(msgSemester)),
		validation.Field(&f.Password, validation.By(passwordRule)),
		validation.Field(&f.ConfirmPassword, validation.By(equalsRule(f.Password, msgPasswordMismatch))),
		validation.Field(&f.AgreeToTerms, validation.By(func(v any) error {
			if b, _ := v.(bool); !b {
				return errors.New(msgTermsRequired)
			}
			return nil
		})),
	)
}

func (f registerForm) registration() authstate.Registration {
	return authstate.Registration{
		FirstName:  f.FirstName,
		LastName:   f.LastName,
		Email:      f.Email,
		RollNumber: f.RollNumber,
		Department: optionLabel(departments, f.Department),
		Semester:   semesterNumber(f.Semester),
		Password:   f.Password,
	}
}

func semesterNumber(v string) int {
	if v == "alumni" {
		return identity.SemesterAlumni
	}
	n, _ := strconv.Atoi(v)
	return n
}

func rollNumberRule(v any) error {
	s, _ := v.(string)
	if !identity.ValidRollNumber(s) {
		return errors.New(msgInvalidRoll)
	}
	return nil
}

// passwordRule requires 8+ characters with upper, lower and a digit.
func passwordRule(v any) error {
	s, _ := v.(string)
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if len([]rune(s)) < 8 || !upper || !lower || !digit {
		return errors.New(msgInvalidPassword)
	}
	return nil
}

func equalsRule(want, msg string) validation.RuleFunc {
	return func(v any) error {
		s, _ := v.(string)
		if s != want {
			return errors.New(msg)
		}
		return nil
	}
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}

// fieldErrors flattens validation.Errors into field -> message.
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for field, e := range verrs {
		out[field] = e.Error()
	}
	return out
}

// firstError picks the message of the earliest field in order.
func firstError(fields map[string]string, order []string) string {
	for _, f := range order {
		if msg, ok := fields[f]; ok {
			return msg
		}
	}
	for _, msg := range fields {
		return msg
	}
	return ""
}
