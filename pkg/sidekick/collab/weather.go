package collab

import (
	"context"
	"net/http"
	"net/url"
)

// WeatherReport is the current weather for a city.
type WeatherReport struct {
	City        string
	TempC       float64
	Description string
}

// Weather is the weather collaborator.
type Weather interface {
	// Current returns the current weather for a city.
	Current(ctx context.Context, city string) (*WeatherReport, error)
}

const openWeatherBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// openWeather talks to the OpenWeatherMap current-weather API.
type openWeather struct {
	apiKey  string
	client  httpDoer
	baseURL string
}

// NewOpenWeather creates a Weather backed by OpenWeatherMap.
func NewOpenWeather(apiKey string) Weather {
	return &openWeather{apiKey: apiKey, client: defaultClient(), baseURL: openWeatherBaseURL}
}

func (w *openWeather) Current(ctx context.Context, city string) (*WeatherReport, error) {
	if w.apiKey == "" {
		return nil, Errf("weather", "OpenWeatherMap API key not configured")
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", w.apiKey)
	q.Set("units", "metric")

	var result struct {
		Name string `json:"name"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := doJSON(ctx, w.client, "weather", http.MethodGet, w.baseURL+"?"+q.Encode(), nil, nil, &result); err != nil {
		return nil, err
	}

	report := &WeatherReport{City: result.Name, TempC: result.Main.Temp}
	if len(result.Weather) > 0 {
		report.Description = result.Weather[0].Description
	}
	return report, nil
}
