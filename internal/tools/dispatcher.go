// Package tools executes model-issued tool invocations. Each invocation
// produces exactly one result payload; failures become soft error
// payloads handed back to the model, never turn-level errors. The
// auth-family tools additionally mutate the turn's session state.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/claralabs/clara/internal/calc"
	"github.com/claralabs/clara/internal/identity"
	"github.com/claralabs/clara/internal/log"
	"github.com/claralabs/clara/internal/memory"
	"github.com/claralabs/clara/internal/session"
	"github.com/claralabs/clara/internal/weather"
)

// IdentityStore is the identity surface the dispatcher needs.
type IdentityStore interface {
	Register(ctx context.Context, name, code string) (identity.Identity, bool, error)
	Authenticate(ctx context.Context, name, code string) (*identity.Identity, error)
}

// SessionStore is the session surface the dispatcher needs.
type SessionStore interface {
	Create(ctx context.Context, userID uuid.UUID) (session.Session, error)
	Delete(ctx context.Context, token uuid.UUID) (bool, error)
}

// MemoryStore is the fact-store surface the dispatcher needs.
type MemoryStore interface {
	Upsert(ctx context.Context, userID uuid.UUID, key, value string) (string, error)
	Get(ctx context.Context, userID uuid.UUID, key string) (string, error)
}

// WeatherService looks up current conditions for a location.
type WeatherService interface {
	Current(ctx context.Context, location string) (weather.Report, error)
}

// Result is one tool outcome, ready for replay into the second
// completion call. Content is the JSON-encoded payload.
type Result struct {
	CallID  string
	Name    string
	Content string
}

var jokes = []string{
	"¿Por qué los programadores prefieren el modo oscuro? Porque la luz atrae bugs.",
	"Hay 10 tipos de personas: las que entienden binario y las que no.",
	"Te contaría un chiste sobre UDP, pero puede que no lo recibas.",
}

// Dispatcher maps tool invocations to concrete operations.
type Dispatcher struct {
	identities IdentityStore
	sessions   SessionStore
	memories   MemoryStore
	weather    WeatherService
	logger     log.Logger
}

// NewDispatcher wires the dispatcher to its collaborators.
func NewDispatcher(identities IdentityStore, sessions SessionStore, memories MemoryStore, w WeatherService, logger log.Logger) *Dispatcher {
	return &Dispatcher{
		identities: identities,
		sessions:   sessions,
		memories:   memories,
		weather:    w,
		logger:     logger,
	}
}

// Dispatch executes one invocation against the turn. It always returns a
// result for the invocation's call id; errors surface inside the payload.
func (d *Dispatcher) Dispatch(ctx context.Context, turn *Turn, call openai.ToolCall) Result {
	name := call.Function.Name
	d.logger.Debug("dispatching tool", "tool", name, "call_id", call.ID)

	payload := d.run(ctx, turn, name, call.Function.Arguments)

	content, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("tool payload marshal failed", "tool", name, "error", err)
		content = []byte(`{"error":"internal tool error"}`)
	}

	return Result{CallID: call.ID, Name: name, Content: string(content)}
}

func (d *Dispatcher) run(ctx context.Context, turn *Turn, name, rawArgs string) any {
	switch name {
	case NameCalculator:
		return d.calculator(rawArgs)
	case NameGetWeather:
		return d.getWeather(ctx, rawArgs)
	case NameTellJoke:
		return jokes[rand.N(len(jokes))]
	case NameSaveUserInfo:
		return d.saveUserInfo(ctx, turn, rawArgs)
	case NameAuthenticate:
		return d.authenticate(ctx, turn, rawArgs)
	case NameLogout:
		return d.logout(ctx, turn)
	case NameSaveCasual:
		return d.saveCasual(ctx, turn, rawArgs)
	case NameGetCasual:
		return d.getCasual(ctx, turn, rawArgs)
	default:
		return map[string]string{"error": "unknown tool: " + name}
	}
}

func (d *Dispatcher) calculator(rawArgs string) any {
	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return map[string]string{"error": "invalid arguments"}
	}

	result, err := calc.Eval(args.Expression)
	if err != nil {
		return map[string]string{"error": "no se pudo evaluar la expresión"}
	}
	return map[string]string{"result": result}
}

func (d *Dispatcher) getWeather(ctx context.Context, rawArgs string) any {
	var args struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return map[string]string{"error": "invalid arguments"}
	}

	report, err := d.weather.Current(ctx, args.Location)
	if err != nil {
		d.logger.Warn("weather lookup failed", "location", args.Location, "error", err)
		return map[string]string{"error": "el servicio de clima no está disponible"}
	}
	return report
}

func (d *Dispatcher) saveUserInfo(ctx context.Context, turn *Turn, rawArgs string) any {
	var args struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil || args.Name == "" || args.Code == "" {
		return map[string]string{"error": "faltan nombre o código"}
	}

	id, existing, err := d.identities.Register(ctx, args.Name, args.Code)
	if err != nil {
		d.logger.Error("registration failed", "name", args.Name, "error", err)
		return map[string]string{"error": "no se pudo registrar el usuario"}
	}

	if err := turn.IssueSession(id, func() (session.Session, error) {
		return d.sessions.Create(ctx, id.ID)
	}); err != nil {
		d.logger.Error("session issuance failed", "user_id", id.ID, "error", err)
	}

	message := "Tu usuario " + id.Name + " se registró correctamente y ha iniciado sesión."
	if existing {
		message = "Bienvenido!!! " + id.Name + ", ¿en qué puedo ayudarte hoy?"
	}
	return map[string]string{"userId": id.ID.String(), "message": message}
}

func (d *Dispatcher) authenticate(ctx context.Context, turn *Turn, rawArgs string) any {
	var args struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return map[string]any{"authenticated": false, "message": "Nombre o código incorrecto."}
	}

	id, err := d.identities.Authenticate(ctx, args.Name, args.Code)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			d.logger.Error("authentication failed", "name", args.Name, "error", err)
		}
		// One generic answer for every mismatch; never reveal which
		// field was wrong.
		return map[string]any{"authenticated": false, "message": "Nombre o código incorrecto."}
	}

	if err := turn.IssueSession(*id, func() (session.Session, error) {
		return d.sessions.Create(ctx, id.ID)
	}); err != nil {
		d.logger.Error("session issuance failed", "user_id", id.ID, "error", err)
	}

	return map[string]any{
		"authenticated": true,
		"userId":        id.ID.String(),
		"name":          id.Name,
		"code":          id.Code,
		"message":       "Bienvenido " + id.Name + "!",
	}
}

func (d *Dispatcher) logout(ctx context.Context, turn *Turn) any {
	token, ok := turn.Token()
	if !ok {
		return map[string]any{"loggedOut": false, "message": "No hay sesión activa para cerrar."}
	}

	if _, err := d.sessions.Delete(ctx, token); err != nil {
		d.logger.Error("session delete failed", "error", err)
		return map[string]any{"loggedOut": false, "message": "No se pudo cerrar la sesión."}
	}

	turn.EndSession()
	return map[string]any{"loggedOut": true, "message": "Has cerrado sesión correctamente."}
}

func (d *Dispatcher) saveCasual(ctx context.Context, turn *Turn, rawArgs string) any {
	caller := turn.Caller()
	if caller == nil {
		return map[string]string{"error": "no hay usuario autenticado"}
	}

	var args struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil || args.Key == "" || args.Value == "" {
		return map[string]string{"error": "faltan key o value"}
	}

	key, err := d.memories.Upsert(ctx, caller.ID, args.Key, args.Value)
	if err != nil {
		d.logger.Error("memory upsert failed", "user_id", caller.ID, "key", args.Key, "error", err)
		return map[string]string{"error": "no se pudo guardar el dato"}
	}
	return map[string]any{"saved": true, "key": key}
}

func (d *Dispatcher) getCasual(ctx context.Context, turn *Turn, rawArgs string) any {
	caller := turn.Caller()
	if caller == nil {
		return map[string]string{"error": "no hay usuario autenticado"}
	}

	var args struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil || args.Key == "" {
		return map[string]string{"error": "falta key"}
	}

	value, err := d.memories.Get(ctx, caller.ID, args.Key)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return map[string]any{"found": false, "message": "No encuentro ese dato en tu registro."}
		}
		d.logger.Error("memory read failed", "user_id", caller.ID, "key", args.Key, "error", err)
		return map[string]string{"error": "no se pudo leer el dato"}
	}
	return map[string]any{"found": true, "key": memory.NormalizeKey(args.Key), "value": value}
}
