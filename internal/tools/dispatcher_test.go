package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claralabs/clara/internal/identity"
	"github.com/claralabs/clara/internal/log"
	"github.com/claralabs/clara/internal/memory"
	"github.com/claralabs/clara/internal/session"
	"github.com/claralabs/clara/internal/weather"
)

type stubIdentities struct {
	registered identity.Identity
	existing   bool
	registerErr error

	authenticated *identity.Identity
	authErr       error
}

func (s *stubIdentities) Register(_ context.Context, _, _ string) (identity.Identity, bool, error) {
	return s.registered, s.existing, s.registerErr
}

func (s *stubIdentities) Authenticate(_ context.Context, _, _ string) (*identity.Identity, error) {
	return s.authenticated, s.authErr
}

type stubSessions struct {
	mu      sync.Mutex
	created int
	deleted []uuid.UUID
	session session.Session
	err     error
}

func (s *stubSessions) Create(_ context.Context, _ uuid.UUID) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	return s.session, s.err
}

func (s *stubSessions) Delete(_ context.Context, token uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, token)
	return true, s.err
}

type stubMemories struct {
	mu    sync.Mutex
	facts map[string]string
	err   error
}

func newStubMemories() *stubMemories {
	return &stubMemories{facts: map[string]string{}}
}

func (s *stubMemories) Upsert(_ context.Context, _ uuid.UUID, key, value string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized := memory.NormalizeKey(key)
	s.facts[normalized] = value
	return normalized, nil
}

func (s *stubMemories) Get(_ context.Context, _ uuid.UUID, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.facts[memory.NormalizeKey(key)]
	if !ok {
		return "", memory.ErrNotFound
	}
	return value, nil
}

type stubWeather struct {
	report weather.Report
	err    error
}

func (s *stubWeather) Current(_ context.Context, _ string) (weather.Report, error) {
	return s.report, s.err
}

func testTurn(caller *identity.Identity, token *uuid.UUID) *Turn {
	return NewTurn(caller, token, nil, nil)
}

func call(id, name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: name, Arguments: args},
	}
}

func decode(t *testing.T, r Result) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.Content), &m))
	return m
}

func newTestDispatcher(ids IdentityStore, sess SessionStore, mem MemoryStore, w WeatherService) *Dispatcher {
	if ids == nil {
		ids = &stubIdentities{}
	}
	if sess == nil {
		sess = &stubSessions{}
	}
	if mem == nil {
		mem = newStubMemories()
	}
	if w == nil {
		w = &stubWeather{}
	}
	return NewDispatcher(ids, sess, mem, w, log.NewNop())
}

func TestDispatchCalculator(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("c1", NameCalculator, `{"expression":"2+2*3"}`))

	assert.Equal(t, "c1", r.CallID)
	assert.Equal(t, NameCalculator, r.Name)
	assert.Equal(t, "8", decode(t, r)["result"])
}

func TestDispatchCalculatorSoftError(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("c1", NameCalculator, `{"expression":"2+"}`))

	assert.Contains(t, decode(t, r), "error")
}

func TestDispatchWeather(t *testing.T) {
	w := &stubWeather{report: weather.Report{Location: "Córdoba", Temperature: "23.5°C", Description: "cielo claro", Humidity: "60%"}}
	d := newTestDispatcher(nil, nil, nil, w)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("w1", NameGetWeather, `{"location":"Córdoba"}`))

	got := decode(t, r)
	assert.Equal(t, "23.5°C", got["temperature"])
	assert.Equal(t, "cielo claro", got["description"])
}

func TestDispatchWeatherUnavailableIsSoft(t *testing.T) {
	w := &stubWeather{err: weather.ErrNotConfigured}
	d := newTestDispatcher(nil, nil, nil, w)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("w1", NameGetWeather, `{"location":"Córdoba"}`))

	assert.Contains(t, decode(t, r), "error")
}

func TestDispatchJoke(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("j1", NameTellJoke, `{}`))

	var joke string
	require.NoError(t, json.Unmarshal([]byte(r.Content), &joke))
	assert.Contains(t, jokes, joke)
}

func TestDispatchRegisterNewUserIssuesSession(t *testing.T) {
	id := identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}
	sessions := &stubSessions{session: session.Session{Token: uuid.New(), UserID: id.ID}}
	d := newTestDispatcher(&stubIdentities{registered: id}, sessions, nil, nil)

	var cookie uuid.UUID
	turn := NewTurn(nil, nil, func(tok uuid.UUID) { cookie = tok }, nil)

	r := d.Dispatch(context.Background(), turn, call("r1", NameSaveUserInfo, `{"name":"Ana","code":"1234"}`))

	got := decode(t, r)
	assert.Equal(t, id.ID.String(), got["userId"])
	assert.Contains(t, got["message"], "registró correctamente")
	assert.Equal(t, 1, sessions.created)
	assert.Equal(t, sessions.session.Token, cookie)
	require.NotNil(t, turn.JustAuthenticated())
	assert.Equal(t, "Ana", turn.JustAuthenticated().Name)
}

func TestDispatchRegisterExistingNameIsWelcomeBack(t *testing.T) {
	id := identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}
	sessions := &stubSessions{session: session.Session{Token: uuid.New(), UserID: id.ID}}
	d := newTestDispatcher(&stubIdentities{registered: id, existing: true}, sessions, nil, nil)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("r1", NameSaveUserInfo, `{"name":"ana","code":"otro"}`))

	got := decode(t, r)
	assert.Equal(t, id.ID.String(), got["userId"])
	assert.Contains(t, got["message"], "Bienvenido")
	assert.Equal(t, 1, sessions.created)
}

func TestDispatchAuthenticateSuccess(t *testing.T) {
	id := &identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}
	sessions := &stubSessions{session: session.Session{Token: uuid.New(), UserID: id.ID}}
	d := newTestDispatcher(&stubIdentities{authenticated: id}, sessions, nil, nil)

	turn := testTurn(nil, nil)
	r := d.Dispatch(context.Background(), turn, call("a1", NameAuthenticate, `{"name":"Ana","code":"1234"}`))

	got := decode(t, r)
	assert.Equal(t, true, got["authenticated"])
	assert.Equal(t, "Ana", got["name"])
	assert.Equal(t, "1234", got["code"])
	assert.Equal(t, 1, sessions.created)
	require.NotNil(t, turn.JustAuthenticated())
}

func TestDispatchAuthenticateMismatchIsGeneric(t *testing.T) {
	sessions := &stubSessions{}
	d := newTestDispatcher(&stubIdentities{authErr: identity.ErrNotFound}, sessions, nil, nil)

	turn := testTurn(nil, nil)
	r := d.Dispatch(context.Background(), turn, call("a1", NameAuthenticate, `{"name":"Ana","code":"wrong"}`))

	got := decode(t, r)
	assert.Equal(t, false, got["authenticated"])
	assert.Equal(t, "Nombre o código incorrecto.", got["message"])
	assert.Zero(t, sessions.created)
	assert.Nil(t, turn.JustAuthenticated())
}

func TestDispatchAuthFamilyIssuesOneSessionPerTurn(t *testing.T) {
	id := identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}
	sessions := &stubSessions{session: session.Session{Token: uuid.New(), UserID: id.ID}}
	d := newTestDispatcher(&stubIdentities{registered: id, authenticated: &id}, sessions, nil, nil)

	turn := testTurn(nil, nil)
	d.Dispatch(context.Background(), turn, call("a1", NameAuthenticate, `{"name":"Ana","code":"1234"}`))
	d.Dispatch(context.Background(), turn, call("r1", NameSaveUserInfo, `{"name":"Ana","code":"1234"}`))

	assert.Equal(t, 1, sessions.created, "second auth-family success must be redundant")
}

func TestDispatchLogout(t *testing.T) {
	token := uuid.New()
	sessions := &stubSessions{}
	d := newTestDispatcher(nil, sessions, nil, nil)

	cleared := false
	turn := NewTurn(nil, &token, nil, func() { cleared = true })

	r := d.Dispatch(context.Background(), turn, call("l1", NameLogout, `{}`))

	got := decode(t, r)
	assert.Equal(t, true, got["loggedOut"])
	assert.Equal(t, []uuid.UUID{token}, sessions.deleted)
	assert.True(t, cleared)

	_, ok := turn.Token()
	assert.False(t, ok)
}

func TestDispatchLogoutWithoutSession(t *testing.T) {
	sessions := &stubSessions{}
	d := newTestDispatcher(nil, sessions, nil, nil)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("l1", NameLogout, `{}`))

	got := decode(t, r)
	assert.Equal(t, false, got["loggedOut"])
	assert.Empty(t, sessions.deleted)
}

func TestDispatchMemoryRoundTrip(t *testing.T) {
	caller := &identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}
	memories := newStubMemories()
	d := newTestDispatcher(nil, nil, memories, nil)
	turn := testTurn(caller, nil)

	r := d.Dispatch(context.Background(), turn, call("m1", NameSaveCasual, `{"key":"tio.auto_color","value":"rojo"}`))
	saved := decode(t, r)
	assert.Equal(t, true, saved["saved"])
	assert.Equal(t, "tio_auto_color", saved["key"])

	r = d.Dispatch(context.Background(), turn, call("m2", NameGetCasual, `{"key":"TIO.auto_color"}`))
	got := decode(t, r)
	assert.Equal(t, true, got["found"])
	assert.Equal(t, "rojo", got["value"])
}

func TestDispatchMemoryMissingFact(t *testing.T) {
	caller := &identity.Identity{ID: uuid.New(), Name: "Ana", Code: "1234"}
	d := newTestDispatcher(nil, nil, newStubMemories(), nil)

	r := d.Dispatch(context.Background(), testTurn(caller, nil), call("m1", NameGetCasual, `{"key":"perro.nombre"}`))

	got := decode(t, r)
	assert.Equal(t, false, got["found"])
	assert.Equal(t, "No encuentro ese dato en tu registro.", got["message"])
}

func TestDispatchMemoryRequiresCaller(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("m1", NameSaveCasual, `{"key":"k","value":"v"}`))
	assert.Contains(t, decode(t, r), "error")

	r = d.Dispatch(context.Background(), testTurn(nil, nil), call("m2", NameGetCasual, `{"key":"k"}`))
	assert.Contains(t, decode(t, r), "error")
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("u1", "searchDocuments", `{}`))

	assert.Contains(t, decode(t, r)["error"], "unknown tool")
}

func TestDispatchStoreFailureIsSoft(t *testing.T) {
	d := newTestDispatcher(&stubIdentities{registerErr: errors.New("db down")}, nil, nil, nil)

	r := d.Dispatch(context.Background(), testTurn(nil, nil), call("r1", NameSaveUserInfo, `{"name":"Ana","code":"1234"}`))

	assert.Contains(t, decode(t, r), "error")
}
