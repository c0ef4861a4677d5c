package alerts

import (
	"encoding/json"
	"strings"
	"testing"

	"impactalert/internal/types"
)

func scalar(raw string) types.Scalar {
	return types.ScalarFromRaw(json.RawMessage(raw))
}

func TestSafeDistanceKm(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`12.3`, 12},
		{`12.5`, 13},
		{`5.9`, 6},
		{`0.4`, 6},
		{`"8.6"`, 9},
		{`null`, 6},
		{``, 6},
		{`"unknown"`, 6},
		{`250`, 250},
	}

	for _, tt := range tests {
		if got := SafeDistanceKm(scalar(tt.raw)); got != tt.want {
			t.Errorf("SafeDistanceKm(%s) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestComposeAlertBody(t *testing.T) {
	body := ComposeAlertBody(scalar(`40.71284`), scalar(`-74.00601`), scalar(`12.3`))

	for _, want := range []string{"40.713, -74.006", "at least 12 km", "radius: 12.3 km", civilInstruction} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q missing %q", body, want)
		}
	}
}

func TestComposeAlertBody_NonNumericCoordinates(t *testing.T) {
	body := ComposeAlertBody(scalar(`"north pole"`), scalar(`null`), types.Scalar{})

	for _, want := range []string{"near north pole, unknown", "at least 6 km", "radius: unknown."} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q missing %q", body, want)
		}
	}
}

func TestSuppressionKey(t *testing.T) {
	a := SuppressionKey(KindSend, "+1555", "hello")
	if a != SuppressionKey(KindSend, "+1555", "hello") {
		t.Error("key must be deterministic")
	}
	if !strings.HasPrefix(a, "send:") {
		t.Errorf("key %q should carry its kind", a)
	}
	if a == SuppressionKey(KindSchedule, "+1555", "hello") {
		t.Error("kind must be part of the key")
	}
	if SuppressionKey(KindSend, "ab", "c") == SuppressionKey(KindSend, "a", "bc") {
		t.Error("field boundaries must be part of the key")
	}
}
