package state

import "testing"

func TestNext(t *testing.T) {
	tests := []struct {
		name        string
		hasIdentity bool
		text        string
		want        Conversation
	}{
		// Logout detection
		{"anonymous logout spanish", false, "cerrar sesión", NoSession},
		{"anonymous logout no accent", false, "quiero cerrar sesion", NoSession},
		{"anonymous logout english", false, "logout", NoSession},
		{"anonymous salir", false, "salir", NoSession},
		{"authenticated logout", true, "cerrar sesión", LoggingOut},
		{"authenticated logout english", true, "please log out", LoggingOut},

		// Identity always wins over register/login intent
		{"authenticated plain text", true, "hola, como estás?", Authenticated},
		{"authenticated register keyword ignored", true, "registrarme", Authenticated},
		{"authenticated login keyword ignored", true, "quiero ingresar", Authenticated},
		{"authenticated empty text", true, "", Authenticated},

		// Anonymous intent detection
		{"register spanish", false, "quiero registrarme", Registering},
		{"register crear cuenta", false, "quiero crear cuenta", Registering},
		{"register english", false, "I want to sign up", Registering},
		{"login spanish", false, "quiero ingresar", LoggingIn},
		{"login entrar", false, "dejame entrar", LoggingIn},
		{"login english", false, "let me log in", LoggingIn},

		// Bare "name, code" pair
		{"credentials pair", false, "Ana, 1234", Registering},
		{"credentials with spaces", false, "  Juan Perez , 99  ", Registering},
		{"two commas is not a pair", false, "a, b, c", Unauthenticated},
		{"empty second part", false, "Ana,", Unauthenticated},
		{"empty first part", false, ", 1234", Unauthenticated},

		// Default
		{"anonymous casual", false, "qué día es hoy?", Unauthenticated},
		{"anonymous empty", false, "", Unauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Next(tt.hasIdentity, tt.text); got != tt.want {
				t.Errorf("Next(%v, %q) = %v, want %v", tt.hasIdentity, tt.text, got, tt.want)
			}
		})
	}
}

func TestNextIsDeterministic(t *testing.T) {
	for range 3 {
		if got := Next(false, "Ana, 1234"); got != Registering {
			t.Fatalf("Next changed across calls: got %v", got)
		}
	}
}

func TestConversationString(t *testing.T) {
	tests := []struct {
		c    Conversation
		want string
	}{
		{Unauthenticated, "UNAUTHENTICATED"},
		{Registering, "REGISTERING"},
		{LoggingIn, "LOGGING_IN"},
		{Authenticated, "AUTHENTICATED"},
		{LoggingOut, "LOGGING_OUT"},
		{NoSession, "NO_SESSION"},
		{Conversation(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
