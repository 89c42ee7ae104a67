package auth

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"busticket/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

var phonePattern = regexp.MustCompile(`^\d{10}$`)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword requires 8+ characters, an uppercase letter and a
// special character.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return apperr.ValidationError{Field: "password", Msg: "Mật khẩu phải có ít nhất 8 ký tự"}
	}
	var upper, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r):
			special = true
		}
	}
	if !upper {
		return apperr.ValidationError{Field: "password", Msg: "Mật khẩu phải có ít nhất 1 chữ hoa"}
	}
	if !special {
		return apperr.ValidationError{Field: "password", Msg: "Mật khẩu phải có ít nhất 1 ký tự đặc biệt"}
	}
	return nil
}

// ValidatePhone accepts an empty phone or exactly 10 digits.
func ValidatePhone(phone string) error {
	if phone == "" || phonePattern.MatchString(phone) {
		return nil
	}
	return apperr.ValidationError{Field: "phone", Msg: "Số điện thoại phải gồm 10 chữ số"}
}

func ValidateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < 2 || n > 50 {
		return apperr.ValidationError{Field: "name", Msg: "Tên phải từ 2 đến 50 ký tự"}
	}
	return nil
}
