package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/cleanward/internal/types"
	"github.com/cleanward/internal/wards"
)

const (
	MinAge            = 18
	MaxAge            = 100
	MinPasswordLength = 6
)

// Sign-up validation messages, checked in this order
const (
	MsgMissingFields    = "Please fill in all required fields"
	MsgAgeOutOfRange    = "Age must be between 18 and 100"
	MsgWardOutOfRange   = "Ward number must be between 1 and 250"
	MsgInvalidSex       = "Please select your sex"
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordTooShort = "Password must be at least 6 characters long"
)

// FormValue is a form field that accepts a JSON string or number
type FormValue string

// UnmarshalJSON accepts "42", 42 and null
func (v *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = FormValue(n.String())
	return nil
}

func (v FormValue) trimmed() string {
	return strings.TrimSpace(string(v))
}

// SignUpForm is the raw registration form
type SignUpForm struct {
	FirstName       FormValue `json:"firstName"`
	LastName        FormValue `json:"lastName"`
	Email           FormValue `json:"email"`
	Phone           FormValue `json:"phone"`
	Age             FormValue `json:"age"`
	Sex             FormValue `json:"sex"`
	Gender          FormValue `json:"gender"`
	WardNumber      FormValue `json:"wardNumber"`
	Password        FormValue `json:"password"`
	ConfirmPassword FormValue `json:"confirmPassword"`
	Role            FormValue `json:"role"`
}

// ValidSignUp is a form that passed validation
type ValidSignUp struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	Age           int
	Sex           types.Sex
	Gender        *string
	WardNumber    int
	Password      string
	RequestedRole types.Role
}

// ValidateSignUp checks a form without touching any backend. The first
// violated rule wins: completeness, age, ward, sex, password match, password
// length.
func ValidateSignUp(form SignUpForm) (*ValidSignUp, *types.ServiceError) {
	required := []FormValue{
		form.FirstName, form.LastName, form.Email, form.Phone,
		form.Age, form.Sex, form.WardNumber, form.Password,
	}
	for _, v := range required {
		if v.trimmed() == "" {
			return nil, types.NewServiceError(types.CodeMissingFields, MsgMissingFields)
		}
	}

	age, err := leadingInt(form.Age.trimmed())
	if err != nil || age < MinAge || age > MaxAge {
		return nil, types.NewServiceError(types.CodeAgeOutOfRange, MsgAgeOutOfRange)
	}

	ward, err := leadingInt(form.WardNumber.trimmed())
	if err != nil || !wards.ValidID(ward) {
		return nil, types.NewServiceError(types.CodeWardOutOfRange, MsgWardOutOfRange)
	}

	sex := types.Sex(strings.ToLower(form.Sex.trimmed()))
	if !sex.Valid() {
		return nil, types.NewServiceError(types.CodeInvalidSex, MsgInvalidSex)
	}

	// passwords are compared verbatim, whitespace included
	if string(form.Password) != string(form.ConfirmPassword) {
		return nil, types.NewServiceError(types.CodePasswordMismatch, MsgPasswordMismatch)
	}
	if passwordLength(string(form.Password)) < MinPasswordLength {
		return nil, types.NewServiceError(types.CodePasswordTooShort, MsgPasswordTooShort)
	}

	out := &ValidSignUp{
		FirstName:     form.FirstName.trimmed(),
		LastName:      form.LastName.trimmed(),
		Email:         strings.ToLower(form.Email.trimmed()),
		Phone:         form.Phone.trimmed(),
		Age:           age,
		Sex:           sex,
		WardNumber:    ward,
		Password:      string(form.Password),
		RequestedRole: types.RoleCitizen,
	}
	if g := form.Gender.trimmed(); g != "" {
		out.Gender = &g
	}
	if types.Role(strings.ToLower(form.Role.trimmed())) == types.RoleAdmin {
		out.RequestedRole = types.RoleAdmin
	}
	return out, nil
}

var errNoDigits = errors.New("no leading digits")

// leadingInt reads the integer prefix of s, so "18.0" and "42 years" parse
// while "abc" does not. A 0x prefix switches to hexadecimal.
func leadingInt(s string) (int, error) {
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base := 10
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	end := 0
	for end < len(s) && isDigit(s[end], base) {
		end++
	}
	if end == 0 {
		return 0, errNoDigits
	}
	n, err := strconv.ParseInt(s[:end], base, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return int(n), nil
}

func isDigit(c byte, base int) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case base == 16:
		return (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	}
	return false
}

// passwordLength counts UTF-16 code units, the unit browsers report
func passwordLength(pw string) int {
	return len(utf16.Encode([]rune(pw)))
}
