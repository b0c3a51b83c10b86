package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	errMissing   = errors.New("missing")
	errEmpty     = errors.New("empty")
	errNotFinite = errors.New("not a finite number")
)

// envelope is the subset of the OpenWeatherMap current-weather payload that Parse reads.
type envelope struct {
	weather map[string]json.RawMessage // first element of "weather"
	main    map[string]json.RawMessage
}

// Parse extracts condition, icon and temperature from a provider body.
// Shape is validated first, then fields are coerced; both failures return *ParseError.
func Parse(body string) (Reading, error) {
	env, err := parseShape([]byte(body))
	if err != nil {
		return Reading{}, err
	}
	return coerce(env)
}

func parseShape(body []byte) (envelope, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return envelope{}, &ParseError{Stage: StageShape, Err: err}
	}
	if root == nil {
		return envelope{}, &ParseError{Stage: StageShape, Err: errors.New("body is not an object")}
	}

	rawWeather, ok := present(root, "weather")
	if !ok {
		return envelope{}, &ParseError{Stage: StageShape, Field: "weather", Err: errMissing}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawWeather, &items); err != nil {
		return envelope{}, &ParseError{Stage: StageShape, Field: "weather", Err: err}
	}
	if len(items) == 0 {
		return envelope{}, &ParseError{Stage: StageShape, Field: "weather", Err: errEmpty}
	}

	first, err := object(items[0])
	if err != nil {
		return envelope{}, &ParseError{Stage: StageShape, Field: "weather[0]", Err: err}
	}

	rawMain, ok := present(root, "main")
	if !ok {
		return envelope{}, &ParseError{Stage: StageShape, Field: "main", Err: errMissing}
	}
	mainObj, err := object(rawMain)
	if err != nil {
		return envelope{}, &ParseError{Stage: StageShape, Field: "main", Err: err}
	}

	return envelope{weather: first, main: mainObj}, nil
}

func coerce(env envelope) (Reading, error) {
	condition, err := nonEmptyString(env.weather, "main")
	if err != nil {
		return Reading{}, &ParseError{Stage: StageCoerce, Field: "weather[0].main", Err: err}
	}
	icon, err := nonEmptyString(env.weather, "icon")
	if err != nil {
		return Reading{}, &ParseError{Stage: StageCoerce, Field: "weather[0].icon", Err: err}
	}

	rawTemp, ok := present(env.main, "temp")
	if !ok {
		return Reading{}, &ParseError{Stage: StageCoerce, Field: "main.temp", Err: errMissing}
	}
	var temp float64
	if err := json.Unmarshal(rawTemp, &temp); err != nil {
		return Reading{}, &ParseError{Stage: StageCoerce, Field: "main.temp", Err: err}
	}
	if math.IsNaN(temp) || math.IsInf(temp, 0) {
		return Reading{}, &ParseError{Stage: StageCoerce, Field: "main.temp", Err: errNotFinite}
	}

	return Reading{Condition: condition, Icon: icon, Temperature: temp}, nil
}

// present returns the raw value of key, treating JSON null as absent.
func present(m map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := m[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func object(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("not an object")
	}
	return m, nil
}

func nonEmptyString(m map[string]json.RawMessage, key string) (string, error) {
	raw, ok := present(m, key)
	if !ok {
		return "", errMissing
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	if s == "" {
		return "", errEmpty
	}
	return s, nil
}
