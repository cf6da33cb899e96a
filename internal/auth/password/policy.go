// Package password evaluates candidate passwords against the configured strength policy.
package password

import (
	"fmt"
	"strings"
	"unicode"
)

// SpecialCharacters is the set that satisfies RequireSpecial.
const SpecialCharacters = `!@#$%^&*(),.?":{}|<>`

// DefaultMinLength applies when a policy leaves MinLength unset.
const DefaultMinLength = 8

// Policy describes the rules a password must satisfy.
type Policy struct {
	MinLength        int  `json:"min_length"`
	RequireUppercase bool `json:"require_uppercase"`
	RequireLowercase bool `json:"require_lowercase"`
	RequireNumbers   bool `json:"require_numbers"`
	RequireSpecial   bool `json:"require_special"`
}

// DefaultPolicy enables every rule with the default minimum length.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:        DefaultMinLength,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
		RequireSpecial:   true,
	}
}

// Rule identifiers reported in violations.
const (
	RuleMinLength = "min_length"
	RuleUppercase = "uppercase"
	RuleLowercase = "lowercase"
	RuleNumber    = "number"
	RuleSpecial   = "special"
)

// Violation is a single failed rule.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Violations collects every failed rule. It doubles as an error.
type Violations []Violation

func (v Violations) Error() string {
	if len(v) == 0 {
		return "password does not meet requirements"
	}
	msgs := make([]string, len(v))
	for i, violation := range v {
		msgs[i] = violation.Message
	}
	return strings.Join(msgs, "; ")
}

// Validate evaluates every rule independently and returns all violations (nil when valid).
func Validate(password string, policy Policy) Violations {
	minLength := policy.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(SpecialCharacters, r) {
			hasSpecial = true
		}
	}

	var violations Violations
	if len([]rune(password)) < minLength {
		violations = append(violations, Violation{
			Rule:    RuleMinLength,
			Message: fmt.Sprintf("Password must be at least %d characters long", minLength),
		})
	}
	if policy.RequireUppercase && !hasUpper {
		violations = append(violations, Violation{Rule: RuleUppercase, Message: "Password must contain at least one uppercase letter"})
	}
	if policy.RequireLowercase && !hasLower {
		violations = append(violations, Violation{Rule: RuleLowercase, Message: "Password must contain at least one lowercase letter"})
	}
	if policy.RequireNumbers && !hasDigit {
		violations = append(violations, Violation{Rule: RuleNumber, Message: "Password must contain at least one number"})
	}
	if policy.RequireSpecial && !hasSpecial {
		violations = append(violations, Violation{Rule: RuleSpecial, Message: "Password must contain at least one special character"})
	}
	return violations
}

// Check is Validate returning a plain error, nil when the password is acceptable.
func Check(password string, policy Policy) error {
	if v := Validate(password, policy); len(v) > 0 {
		return v
	}
	return nil
}
