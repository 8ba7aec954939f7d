package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// InviteCodeSegments is the number of dash-separated segments in a full
// invite code: two for the school sign-in code, one for the student, one
// for the random suffix.
const InviteCodeSegments = 4

// suffix alphabet excludes the dash so segment counting stays unambiguous
const suffixChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const suffixLength = 8

// GenerateInviteCode composes a parent invite code from the school's
// two-segment sign-in code and the student's identity:
//
//	{schoolSignInCode}-{FIRSTNAME}{LASTINITIAL}{grade}-{8-char random}
//
// e.g. TXTEST-DEMO-EMMAS5-A1B2C3D4
func GenerateInviteCode(signInCode, firstName, lastInitial string, grade int) (string, error) {
	suffix, err := randomSuffix(suffixLength)
	if err != nil {
		return "", err
	}

	student := strings.ToUpper(fmt.Sprintf("%s%s%d", firstName, lastInitial, grade))
	return fmt.Sprintf("%s-%s-%s", strings.ToUpper(signInCode), student, suffix), nil
}

// GenerateStudentSignInCode composes the short code students type to log
// in, e.g. "EmmaS5"
func GenerateStudentSignInCode(firstName, lastInitial string, grade int) string {
	return fmt.Sprintf("%s%s%d", firstName, lastInitial, grade)
}

// ValidInviteCodeFormat reports whether a code splits into exactly the
// documented number of dash-delimited segments, all non-empty
func ValidInviteCodeFormat(code string) bool {
	parts := strings.Split(code, "-")
	if len(parts) != InviteCodeSegments {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

// randomSuffix generates a random string from the suffix alphabet
func randomSuffix(length int) (string, error) {
	suffix := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixChars))))
		if err != nil {
			return "", err
		}
		suffix[i] = suffixChars[num.Int64()]
	}
	return string(suffix), nil
}
