// Package features turns raw user input into the structured record consumed
// by the delay predictor. It owns the canonical field order, type coercion
// and the client-facing input errors.
package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Canonical field names, in the order they are validated.
const (
	FieldMonth             = "month"
	FieldCarrier           = "carrier"
	FieldAirport           = "airport"
	FieldArrFlights        = "arr_flights"
	FieldCarrierDelay      = "carrier_delay"
	FieldWeatherDelay      = "weather_delay"
	FieldNASDelay          = "nas_delay"
	FieldSecurityDelay     = "security_delay"
	FieldLateAircraftDelay = "late_aircraft_delay"
)

// RequiredFields lists every field of a record in canonical order.
var RequiredFields = []string{
	FieldMonth,
	FieldCarrier,
	FieldAirport,
	FieldArrFlights,
	FieldCarrierDelay,
	FieldWeatherDelay,
	FieldNASDelay,
	FieldSecurityDelay,
	FieldLateAircraftDelay,
}

// NumericFeatures is the numeric block of the model input, in model order.
var NumericFeatures = []string{
	FieldMonth,
	FieldArrFlights,
	FieldCarrierDelay,
	FieldWeatherDelay,
	FieldNASDelay,
	FieldSecurityDelay,
	FieldLateAircraftDelay,
}

// CategoricalFeatures is the one-hot encoded block of the model input.
var CategoricalFeatures = []string{FieldCarrier, FieldAirport}

// Record is a single flight observation ready for prediction.
type Record struct {
	Month             int     `json:"month"`
	Carrier           string  `json:"carrier"`
	Airport           string  `json:"airport"`
	ArrFlights        float64 `json:"arr_flights"`
	CarrierDelay      float64 `json:"carrier_delay"`
	WeatherDelay      float64 `json:"weather_delay"`
	NASDelay          float64 `json:"nas_delay"`
	SecurityDelay     float64 `json:"security_delay"`
	LateAircraftDelay float64 `json:"late_aircraft_delay"`
}

// MissingFieldError reports the first absent required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing required field: %s", e.Field)
}

// TypeCoercionError reports a value that cannot be converted to the field's type.
type TypeCoercionError struct {
	Field string
	Value interface{}
	Type  string
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("Invalid value for field %s: %s is not a valid %s", e.Field, formatRaw(e.Value), e.Type)
}

// Assemble builds a Record from an arbitrary key/value mapping such as a
// decoded JSON body. Fields are checked for presence in canonical order
// before any coercion happens. Nothing is defaulted.
func Assemble(raw map[string]interface{}) (Record, error) {
	for _, field := range RequiredFields {
		if _, ok := raw[field]; !ok {
			return Record{}, &MissingFieldError{Field: field}
		}
	}

	var (
		rec Record
		err error
	)

	if rec.Month, err = toInt(FieldMonth, raw[FieldMonth]); err != nil {
		return Record{}, err
	}
	if rec.Carrier, err = toString(FieldCarrier, raw[FieldCarrier]); err != nil {
		return Record{}, err
	}
	if rec.Airport, err = toString(FieldAirport, raw[FieldAirport]); err != nil {
		return Record{}, err
	}

	floats := []struct {
		field string
		dst   *float64
	}{
		{FieldArrFlights, &rec.ArrFlights},
		{FieldCarrierDelay, &rec.CarrierDelay},
		{FieldWeatherDelay, &rec.WeatherDelay},
		{FieldNASDelay, &rec.NASDelay},
		{FieldSecurityDelay, &rec.SecurityDelay},
		{FieldLateAircraftDelay, &rec.LateAircraftDelay},
	}
	for _, f := range floats {
		if *f.dst, err = toFloat(f.field, raw[f.field]); err != nil {
			return Record{}, err
		}
	}

	return rec, nil
}

// Numeric returns the value of a numeric feature by name.
func (r Record) Numeric(name string) (float64, bool) {
	switch name {
	case FieldMonth:
		return float64(r.Month), true
	case FieldArrFlights:
		return r.ArrFlights, true
	case FieldCarrierDelay:
		return r.CarrierDelay, true
	case FieldWeatherDelay:
		return r.WeatherDelay, true
	case FieldNASDelay:
		return r.NASDelay, true
	case FieldSecurityDelay:
		return r.SecurityDelay, true
	case FieldLateAircraftDelay:
		return r.LateAircraftDelay, true
	}
	return 0, false
}

// Categorical returns the value of a categorical feature by name.
func (r Record) Categorical(name string) (string, bool) {
	switch name {
	case FieldCarrier:
		return r.Carrier, true
	case FieldAirport:
		return r.Airport, true
	}
	return "", false
}

func toInt(field string, v interface{}) (int, error) {
	fail := &TypeCoercionError{Field: field, Value: v, Type: "integer"}

	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float32:
		return truncate(float64(x), fail)
	case float64:
		return truncate(x, fail)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fail
		}
		return truncate(f, fail)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fail
		}
		return i, nil
	}
	return 0, fail
}

// truncate drops the fractional part of numeric input, the same as an int
// cast. Values an int cannot hold are rejected instead of wrapping.
func truncate(f float64, fail error) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fail
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fail
	}
	return int(f), nil
}

func toFloat(field string, v interface{}) (float64, error) {
	fail := &TypeCoercionError{Field: field, Value: v, Type: "number"}

	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fail
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fail
		}
		f = parsed
	default:
		return 0, fail
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fail
	}
	return f, nil
}

func toString(field string, v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int, int32, int64:
		return fmt.Sprint(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", &TypeCoercionError{Field: field, Value: v, Type: "string"}
}

func formatRaw(v interface{}) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}
