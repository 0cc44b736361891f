// Package weather fetches forecasts from the Pirate Weather API through the
// task scheduler and turns them into a small display model.
package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Icon names understood by the weather widget.
const (
	IconClearDay          = "clear-day"
	IconClearNight        = "clear-night"
	IconPartlyCloudyDay   = "partly-cloudy-day"
	IconPartlyCloudyNight = "partly-cloudy-night"
	IconRain              = "rain"
	IconSnow              = "snow"
	IconFog               = "fog"
)

// Current is the present condition.
type Current struct {
	Temperature float64
	Text        string
	Icon        string
}

// Day is one forecast day.
type Day struct {
	Icon string
	High float64
	Low  float64
}

// Model is what the widget draws.
type Model struct {
	City      string
	Current   Current
	TodayHigh float64
	TodayLow  float64
	Days      []Day
}

// ForecastDays is how many days after today are shown.
const ForecastDays = 3

// Settings select the location and presentation of a forecast.
type Settings struct {
	APIURL string
	APIKey string
	Lat    float64
	Lon    float64
	Name   string
	Units  string
	Lang   string
}

// URL builds the forecast request URL.
func (s Settings) URL() string {
	units := "si"
	if s.Units == "imperial" {
		units = "us"
	}
	lang := "en"
	switch s.Lang {
	case "de", "fr":
		lang = s.Lang
	}
	base := s.APIURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return fmt.Sprintf("%s%s/%.4f,%.4f?units=%s&exclude=minutely,hourly,alerts&lang=%s",
		base, s.APIKey, s.Lat, s.Lon, units, lang)
}

// document mirrors the subset of the API response that is kept.
type document struct {
	Currently struct {
		Time        int64   `json:"time"`
		Temperature float64 `json:"temperature"`
		Summary     string  `json:"summary"`
		Icon        string  `json:"icon"`
	} `json:"currently"`
	Daily struct {
		Data []struct {
			Time            int64   `json:"time"`
			Summary         string  `json:"summary"`
			Icon            string  `json:"icon"`
			TemperatureHigh float64 `json:"temperatureHigh"`
			TemperatureLow  float64 `json:"temperatureLow"`
		} `json:"data"`
	} `json:"daily"`
}

// Preprocess projects a full API response down to the fields Parse reads,
// so the retained body stays small.
func Preprocess(body []byte) ([]byte, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	if len(doc.Daily.Data) > ForecastDays+1 {
		doc.Daily.Data = doc.Daily.Data[:ForecastDays+1]
	}
	return json.Marshal(doc)
}

// Parse builds a model from a (preprocessed) response body.
func Parse(body []byte, city string) (Model, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Model{}, fmt.Errorf("decode forecast: %w", err)
	}
	if len(doc.Daily.Data) == 0 {
		return Model{}, errors.New("forecast has no daily data")
	}
	m := Model{
		City: city,
		Current: Current{
			Temperature: doc.Currently.Temperature,
			Text:        doc.Currently.Summary,
			Icon:        TranslateIcon(doc.Currently.Icon),
		},
		TodayHigh: doc.Daily.Data[0].TemperatureHigh,
		TodayLow:  doc.Daily.Data[0].TemperatureLow,
	}
	for i := 1; i < len(doc.Daily.Data) && i <= ForecastDays; i++ {
		d := doc.Daily.Data[i]
		m.Days = append(m.Days, Day{
			Icon: TranslateIcon(d.Icon),
			High: d.TemperatureHigh,
			Low:  d.TemperatureLow,
		})
	}
	return m, nil
}

// TranslateIcon maps an API icon name onto the widget's icon set. Unknown
// names show as clear-day.
func TranslateIcon(icon string) string {
	switch icon {
	case "clear-day", "clear-night", "partly-cloudy-day", "partly-cloudy-night",
		"rain", "snow", "fog":
		return icon
	case "sleet", "cloudy":
		return IconRain
	default:
		return IconClearDay
	}
}
