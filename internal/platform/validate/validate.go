// Package validate holds the field formats shared by patient and user
// records.
package validate

import (
	"regexp"
	"strings"
)

var (
	nicRe   = regexp.MustCompile(`^(\d{9}[vVxX]|\d{12})$`)
	phoneRe = regexp.MustCompile(`^0\d{9}$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// NIC accepts the old nine-digit-plus-letter and the new twelve-digit
// Sri Lankan identity card formats.
func NIC(s string) bool { return nicRe.MatchString(s) }

// NormalizeNIC trims and upper-cases the trailing letter.
func NormalizeNIC(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Phone accepts a ten-digit local number starting with 0.
func Phone(s string) bool { return phoneRe.MatchString(s) }

func Email(s string) bool { return emailRe.MatchString(s) }
