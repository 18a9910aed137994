package tools

import (
	"context"
	"strings"
	"testing"
)

func TestWeatherToolKnownCity(t *testing.T) {
	result, err := WeatherTool{}.Execute(context.Background(), map[string]any{"city": "Austin"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Austin") {
		t.Fatalf("expected city name in result, got %q", result.Content)
	}
}

func TestWeatherToolMissingCity(t *testing.T) {
	result, err := WeatherTool{}.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing city")
	}
}

func TestWeatherToolUnknownCityFallsBackToDefault(t *testing.T) {
	result, err := WeatherTool{}.Execute(context.Background(), map[string]any{"city": "Nowhereville"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected fallback forecast, got error: %s", result.Content)
	}
}
