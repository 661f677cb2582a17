package features

import (
	"net/url"
	"strings"
)

// FormDefaults are the values pre-filled in the interactive prediction form.
// They apply to the form path only; the JSON API never defaults a field.
var FormDefaults = map[string]string{
	FieldMonth:             "1",
	FieldCarrier:           "AA",
	FieldAirport:           "ATL",
	FieldArrFlights:        "100",
	FieldCarrierDelay:      "0",
	FieldWeatherDelay:      "0",
	FieldNASDelay:          "0",
	FieldSecurityDelay:     "0",
	FieldLateAircraftDelay: "0",
}

// FromForm collects submitted form values into an Assemble input, filling
// blank or absent fields from FormDefaults.
func FromForm(form url.Values) map[string]interface{} {
	raw := make(map[string]interface{}, len(RequiredFields))
	for _, field := range RequiredFields {
		v := strings.TrimSpace(form.Get(field))
		if v == "" {
			v = FormDefaults[field]
		}
		raw[field] = v
	}
	return raw
}
