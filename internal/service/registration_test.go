package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanward/internal/types"
)

func validForm() SignUpForm {
	return SignUpForm{
		FirstName:       "Asha",
		LastName:        "Rao",
		Email:           "Asha.Rao@Example.org ",
		Phone:           "9876543210",
		Age:             "29",
		Sex:             "female",
		WardNumber:      "42",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Role:            "citizen",
	}
}

func TestValidateSignUp_Valid(t *testing.T) {
	got, err := ValidateSignUp(validForm())
	require.Nil(t, err)
	assert.Equal(t, "asha.rao@example.org", got.Email)
	assert.Equal(t, 29, got.Age)
	assert.Equal(t, 42, got.WardNumber)
	assert.Equal(t, types.SexFemale, got.Sex)
	assert.Nil(t, got.Gender)
	assert.Equal(t, types.RoleCitizen, got.RequestedRole)
}

func TestValidateSignUp_RuleOrder(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *SignUpForm)
		code    string
		message string
	}{
		{"missing phone", func(f *SignUpForm) { f.Phone = " " }, types.CodeMissingFields, MsgMissingFields},
		{"missing everything but passwords mismatch", func(f *SignUpForm) {
			f.FirstName = ""
			f.ConfirmPassword = "other"
		}, types.CodeMissingFields, MsgMissingFields},
		{"age below range", func(f *SignUpForm) { f.Age = "17" }, types.CodeAgeOutOfRange, MsgAgeOutOfRange},
		{"age above range", func(f *SignUpForm) { f.Age = "101" }, types.CodeAgeOutOfRange, MsgAgeOutOfRange},
		{"age not a number", func(f *SignUpForm) { f.Age = "twenty" }, types.CodeAgeOutOfRange, MsgAgeOutOfRange},
		{"age checked before ward", func(f *SignUpForm) {
			f.Age = "10"
			f.WardNumber = "999"
		}, types.CodeAgeOutOfRange, MsgAgeOutOfRange},
		{"ward zero", func(f *SignUpForm) { f.WardNumber = "0" }, types.CodeWardOutOfRange, MsgWardOutOfRange},
		{"ward 251", func(f *SignUpForm) { f.WardNumber = "251" }, types.CodeWardOutOfRange, MsgWardOutOfRange},
		{"ward checked before sex", func(f *SignUpForm) {
			f.WardNumber = "251"
			f.Sex = "unknown"
		}, types.CodeWardOutOfRange, MsgWardOutOfRange},
		{"invalid sex", func(f *SignUpForm) { f.Sex = "robot" }, types.CodeInvalidSex, MsgInvalidSex},
		{"sex checked before passwords", func(f *SignUpForm) {
			f.Sex = "robot"
			f.ConfirmPassword = "nope"
		}, types.CodeInvalidSex, MsgInvalidSex},
		{"password mismatch", func(f *SignUpForm) {
			f.Password = "secret1"
			f.ConfirmPassword = "secret2"
		}, types.CodePasswordMismatch, MsgPasswordMismatch},
		{"mismatch checked before length", func(f *SignUpForm) {
			f.Password = "abc"
			f.ConfirmPassword = "abd"
		}, types.CodePasswordMismatch, MsgPasswordMismatch},
		{"password too short", func(f *SignUpForm) {
			f.Password = "abc"
			f.ConfirmPassword = "abc"
		}, types.CodePasswordTooShort, MsgPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)
			_, err := ValidateSignUp(form)
			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
		})
	}
}

func TestValidateSignUp_OptionalGenderAndAdminRole(t *testing.T) {
	form := validForm()
	form.Gender = " non-binary "
	form.Role = "ADMIN"

	got, err := ValidateSignUp(form)
	require.Nil(t, err)
	require.NotNil(t, got.Gender)
	assert.Equal(t, "non-binary", *got.Gender)
	assert.Equal(t, types.RoleAdmin, got.RequestedRole)
}

func TestValidateSignUp_NumericPrefixes(t *testing.T) {
	tests := []struct {
		age, ward string
		wantAge   int
		wantWard  int
	}{
		{"18.0", "7.9", 18, 7},
		{"42 years", "250abc", 42, 250},
		{"+30", "0x10", 30, 16},
	}

	for _, tt := range tests {
		t.Run(tt.age+"/"+tt.ward, func(t *testing.T) {
			form := validForm()
			form.Age = FormValue(tt.age)
			form.WardNumber = FormValue(tt.ward)

			got, err := ValidateSignUp(form)
			require.Nil(t, err)
			assert.Equal(t, tt.wantAge, got.Age)
			assert.Equal(t, tt.wantWard, got.WardNumber)
		})
	}

	form := validForm()
	form.Age = "abc"
	_, err := ValidateSignUp(form)
	require.NotNil(t, err)
	assert.Equal(t, types.CodeAgeOutOfRange, err.Code)

	form = validForm()
	form.WardNumber = ".5"
	_, err = ValidateSignUp(form)
	require.NotNil(t, err)
	assert.Equal(t, types.CodeWardOutOfRange, err.Code)

	form = validForm()
	form.Age = "-18"
	_, err = ValidateSignUp(form)
	require.NotNil(t, err)
	assert.Equal(t, types.CodeAgeOutOfRange, err.Code)
}

func TestValidateSignUp_PasswordLengthInUTF16Units(t *testing.T) {
	form := validForm()
	// three astral emoji are six UTF-16 units
	form.Password = "\U0001F600\U0001F601\U0001F602"
	form.ConfirmPassword = form.Password
	_, err := ValidateSignUp(form)
	assert.Nil(t, err)

	form.Password = "\U0001F600\U0001F601x"
	form.ConfirmPassword = form.Password
	_, err = ValidateSignUp(form)
	require.NotNil(t, err)
	assert.Equal(t, types.CodePasswordTooShort, err.Code)

	// BMP characters count once each
	form.Password = "ééééé"
	form.ConfirmPassword = form.Password
	_, err = ValidateSignUp(form)
	require.NotNil(t, err)
	assert.Equal(t, types.CodePasswordTooShort, err.Code)
}

func TestSignUpForm_AcceptsJSONNumbers(t *testing.T) {
	var form SignUpForm
	body := `{"firstName":"Ravi","lastName":"K","email":"r@k.in","phone":"1","age":34,
		"sex":"male","wardNumber":250,"password":"secret1","confirmPassword":"secret1","gender":null}`
	require.NoError(t, json.Unmarshal([]byte(body), &form))
	assert.Equal(t, FormValue("34"), form.Age)
	assert.Equal(t, FormValue("250"), form.WardNumber)
	assert.Equal(t, FormValue(""), form.Gender)

	got, err := ValidateSignUp(form)
	require.Nil(t, err)
	assert.Equal(t, 250, got.WardNumber)
}

func TestValidateSignUp_RangeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("age accepted exactly within 18..100", prop.ForAll(
		func(age int) bool {
			form := validForm()
			form.Age = FormValue(strconv.Itoa(age))
			_, err := ValidateSignUp(form)
			inRange := age >= MinAge && age <= MaxAge
			if inRange {
				return err == nil
			}
			return err != nil && err.Code == types.CodeAgeOutOfRange
		},
		gen.IntRange(-50, 200),
	))

	properties.Property("ward accepted exactly within 1..250", prop.ForAll(
		func(ward int) bool {
			form := validForm()
			form.WardNumber = FormValue(strconv.Itoa(ward))
			_, err := ValidateSignUp(form)
			if ward >= 1 && ward <= 250 {
				return err == nil
			}
			return err != nil && err.Code == types.CodeWardOutOfRange
		},
		gen.IntRange(-100, 400),
	))

	properties.Property("short matching passwords are always rejected for length", prop.ForAll(
		func(pw string) bool {
			form := validForm()
			form.Password = FormValue(pw)
			form.ConfirmPassword = FormValue(pw)
			_, err := ValidateSignUp(form)
			if pw == "" {
				return err != nil && err.Code == types.CodeMissingFields
			}
			return err != nil && err.Code == types.CodePasswordTooShort
		},
		gen.IntRange(0, MinPasswordLength-1).Map(func(n int) string { return strings.Repeat("x", n) }),
	))

	properties.TestingRun(t)
}
