// Package state computes the conversational state for a turn.
//
// The state is a deterministic, stateless function of whether the caller's
// session resolved to an identity and of the raw message text. It is
// recomputed every turn and never stored.
package state

import (
	"regexp"
	"strings"
)

// Conversation is the closed set of conversational states.
type Conversation int

const (
	// Unauthenticated: no identity and no recognizable auth intent.
	Unauthenticated Conversation = iota
	// Registering: the caller wants to create an account, or sent a
	// bare "name, code" pair.
	Registering
	// LoggingIn: the caller wants to sign in to an existing account.
	LoggingIn
	// Authenticated: the session resolved to an identity.
	Authenticated
	// LoggingOut: an authenticated caller asked to close the session.
	LoggingOut
	// NoSession: an anonymous caller asked to close a session that
	// does not exist.
	NoSession
)

// String returns the canonical name used in logs and prompt selection.
func (c Conversation) String() string {
	switch c {
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case Registering:
		return "REGISTERING"
	case LoggingIn:
		return "LOGGING_IN"
	case Authenticated:
		return "AUTHENTICATED"
	case LoggingOut:
		return "LOGGING_OUT"
	case NoSession:
		return "NO_SESSION"
	default:
		return "UNKNOWN"
	}
}

// Intent patterns. The service serves Spanish- and English-speaking users,
// so both vocabularies are recognized.
var logoutPattern = regexp.MustCompile(`cerrar sesión|cerrar sesion|logout|log out|salir|sign out`)

// intent is the coarse auth intent detected in anonymous messages.
type intent int

const (
	intentNone intent = iota
	intentRegister
	intentLogin
)

// detectIntent classifies an anonymous message as register, login or none
// by keyword matching. Register wins when both vocabularies appear.
func detectIntent(text string) intent {
	switch {
	case strings.Contains(text, "registr"),
		strings.Contains(text, "crear cuenta"),
		strings.Contains(text, "sign up"),
		strings.Contains(text, "create account"):
		return intentRegister
	case strings.Contains(text, "ingresar"),
		strings.Contains(text, "inicio"),
		strings.Contains(text, "entrar"),
		strings.Contains(text, "log in"),
		strings.Contains(text, "login"):
		return intentLogin
	default:
		return intentNone
	}
}

// Next returns the conversational state for a turn. It is total and
// side-effect free.
//
// Priority order:
//  1. anonymous + logout intent        → NoSession
//  2. identity + logout intent         → LoggingOut
//  3. identity (any other text)        → Authenticated
//  4. anonymous + register/login intent → Registering / LoggingIn
//  5. anonymous "name, code" pair      → Registering
//  6. otherwise                        → Unauthenticated
//
// Once authenticated, register/login keywords in the text are ignored:
// rule 3 precedes rule 4.
func Next(hasIdentity bool, text string) Conversation {
	query := strings.ToLower(text)

	if logoutPattern.MatchString(query) {
		if hasIdentity {
			return LoggingOut
		}
		return NoSession
	}

	if hasIdentity {
		return Authenticated
	}

	switch detectIntent(query) {
	case intentRegister:
		return Registering
	case intentLogin:
		return LoggingIn
	}

	if looksLikeCredentials(query) {
		return Registering
	}

	return Unauthenticated
}

// looksLikeCredentials reports whether the text is a bare "name, code"
// pair: exactly one comma splitting it into two non-empty parts.
func looksLikeCredentials(text string) bool {
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return false
	}
	return strings.TrimSpace(parts[0]) != "" && strings.TrimSpace(parts[1]) != ""
}
