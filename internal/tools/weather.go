// Package tools ships the §10 reference Agent-Tools and plain tools: a
// deterministic weather lookup, an approval-free email sender, an
// approval-gated funds transfer, and a registry introspection tool. They
// exist to make the core's scenarios runnable, not as a statement that
// tool content is in scope generally.
package tools

import (
	"context"
	"fmt"

	"github.com/kestrel-ai/reactor/internal/reactor"
)

// WeatherTool is a plain tool with a deterministic mock backend: a fixed
// canned result set stands in for a live weather API, keeping it fast
// and offline in tests.
type WeatherTool struct{}

func (WeatherTool) Name() string { return "get_weather" }

func (WeatherTool) Schema() reactor.ToolSchema {
	return reactor.ToolSchema{
		Name:        "get_weather",
		Description: "Look up the current weather for a named city.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{
					"type":        "string",
					"description": "City name, e.g. \"Austin\" or \"Tokyo\".",
				},
			},
			"required": []string{"city"},
		},
	}
}

// mockForecasts seeds a handful of cities so the scenarios in §8 have
// stable, deterministic output independent of network access.
var mockForecasts = map[string]string{
	"austin":    "72F, clear skies",
	"tokyo":     "61F, light rain",
	"london":    "54F, overcast",
	"san francisco": "58F, foggy",
}

func (WeatherTool) Execute(_ context.Context, args map[string]any) (*reactor.ToolExecResult, error) {
	city, _ := args["city"].(string)
	if city == "" {
		return &reactor.ToolExecResult{Content: "city is required", IsError: true}, nil
	}
	forecast, ok := mockForecasts[normalizeCity(city)]
	if !ok {
		forecast = "65F, partly cloudy"
	}
	return &reactor.ToolExecResult{Content: fmt.Sprintf("Weather in %s: %s", city, forecast)}, nil
}

func normalizeCity(city string) string {
	out := make([]rune, 0, len(city))
	for _, r := range city {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}
