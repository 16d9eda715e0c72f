package booking

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("неверный формат телефона")

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizePhone убирает пробелы, дефисы и скобки и проверяет номер.
func NormalizePhone(s string) (string, error) {
	phone := phoneSeparators.Replace(strings.TrimSpace(s))
	if !phonePattern.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}
