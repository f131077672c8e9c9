package tools

import (
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Tool names as the model invokes them.
const (
	NameCalculator   = "calculator"
	NameGetWeather   = "getWeather"
	NameTellJoke     = "tellJoke"
	NameSaveUserInfo = "saveUserInfo"
	NameAuthenticate = "authenticateUser"
	NameLogout       = "logoutUser"
	NameSaveCasual   = "saveUserCasualData"
	NameGetCasual    = "getUserCasualData"
)

// Catalogue returns the declarative tool list passed to the completion
// service on every phase-1 call.
func Catalogue() []openai.Tool {
	return []openai.Tool{
		fn(NameCalculator, "Evalúa expresiones matemáticas básicas",
			params(map[string]jsonschema.Definition{
				"expression": {Type: jsonschema.String},
			}, "expression")),

		fn(NameGetWeather, "Obtiene el clima actual para una ubicación",
			params(map[string]jsonschema.Definition{
				"location": {Type: jsonschema.String},
			}, "location")),

		fn(NameTellJoke, "Devuelve un chiste aleatorio de programación",
			params(nil)),

		fn(NameSaveUserInfo, "Registra un usuario con name, y code.",
			params(map[string]jsonschema.Definition{
				"name": {Type: jsonschema.String},
				"code": {Type: jsonschema.String},
			}, "name", "code")),

		fn(NameAuthenticate, "Autentica a un usuario usando su nombre y code.",
			params(map[string]jsonschema.Definition{
				"name": {Type: jsonschema.String},
				"code": {Type: jsonschema.String},
			}, "name", "code")),

		fn(NameLogout, "Cierra la sesión del usuario actual eliminando su token de sesión.",
			params(nil)),

		fn(NameSaveCasual, "Guarda los datos personalizados del usuario, como color favorito, alergias, objetos nombrados, relaciones y adjetivos sobre el contexto del que se está hablando.",
			params(map[string]jsonschema.Definition{
				"key":   {Type: jsonschema.String},
				"value": {Type: jsonschema.String},
			}, "key", "value")),

		fn(NameGetCasual, "Obtiene un dato guardado anteriormente.",
			params(map[string]jsonschema.Definition{
				"key": {Type: jsonschema.String},
			}, "key")),
	}
}

func fn(name, description string, parameters jsonschema.Definition) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

func params(properties map[string]jsonschema.Definition, required ...string) jsonschema.Definition {
	if properties == nil {
		properties = map[string]jsonschema.Definition{}
	}
	return jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: properties,
		Required:   required,
	}
}
