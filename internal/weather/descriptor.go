package weather

// FieldType is how a host settings form renders an option.
type FieldType string

const (
	FieldBoolean FieldType = "boolean"
	FieldString  FieldType = "string"
	FieldArray   FieldType = "array"
)

// FormField declares one configurable option.
type FormField struct {
	Name   string    `json:"name"`
	Type   FieldType `json:"type"`
	Values []string  `json:"values,omitempty"`
}

// Descriptor is the static, instance-independent description of an agent
// type that a host reads to render, schedule and document it.
type Descriptor struct {
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	EventDescription string      `json:"event_description"`
	DefaultOptions   Options     `json:"default_options"`
	FormFields       []FormField `json:"form_fields"`
	CanDryRun        bool        `json:"can_dry_run"`
	BulkReceive      bool        `json:"bulk_receive"`
	DefaultSchedule  string      `json:"default_schedule"`
}

const agentDescription = `The OpenWeatherMap Agent creates an event with the current weather at a given coordinate.

The weather information is provided by [OpenWeatherMap](https://openweathermap.org/current).

The ` + "`lat`" + ` (latitude) and ` + "`lon`" + ` (longitude) must be configured for ` + "`current_weather`" + `. For example, San Francisco would be ` + "`37.7771`" + ` and ` + "`-122.4196`" + `.

You must set up an [API key for OpenWeatherMap](https://home.openweathermap.org/api_keys) in order to use this Agent.

Set ` + "`debug`" + ` to true to log the full response body.

Set ` + "`expected_receive_period_in_days`" + ` to the maximum amount of time that you'd expect to pass between Events being created by this Agent.
`

const eventDescription = `Events are the verbatim OpenWeatherMap response, for example:

    {
      "coord": {"lon": 2.3333, "lat": 48.8667},
      "weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}],
      "base": "stations",
      "main": {"temp": 300.35, "feels_like": 300.5, "temp_min": 298.87, "temp_max": 301.01, "pressure": 1008, "humidity": 46},
      "visibility": 10000,
      "wind": {"speed": 3.6, "deg": 210},
      "clouds": {"all": 0},
      "dt": 1656004271,
      "sys": {"type": 2, "id": 2041230, "country": "FR", "sunrise": 1655956045, "sunset": 1656014290},
      "timezone": 7200,
      "id": 6545270,
      "name": "Palais-Royal",
      "cod": 200
    }
`

// PollerDescriptor describes the OpenWeatherMap poller agent.
func PollerDescriptor() Descriptor {
	return Descriptor{
		Name:             "OpenweathermapAgent",
		Description:      agentDescription,
		EventDescription: eventDescription,
		DefaultOptions:   DefaultOptions(),
		FormFields: []FormField{
			{Name: OptionDebug, Type: FieldBoolean},
			{Name: OptionEmitEvents, Type: FieldBoolean},
			{Name: OptionExpectedReceivePeriodInDays, Type: FieldString},
			{Name: OptionType, Type: FieldArray, Values: []string{string(ActionCurrentWeather)}},
			{Name: OptionToken, Type: FieldString},
			{Name: OptionLimit, Type: FieldString},
			{Name: OptionLat, Type: FieldString},
			{Name: OptionLon, Type: FieldString},
		},
		CanDryRun:       true,
		BulkReceive:     false,
		DefaultSchedule: "never",
	}
}
