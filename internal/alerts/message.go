package alerts

import (
	"fmt"
	"math"

	"impactalert/internal/types"
)

// MinSafeDistanceKm is the floor of the evacuation distance in an alert.
const MinSafeDistanceKm = 6

// DefaultManualBody is sent by the manual endpoints when no body is given.
const DefaultManualBody = "Impact alert test: this is a test message from the impact alert bridge."

const civilInstruction = "Follow instructions from local emergency services."

// SafeDistanceKm is max(6, round(severeRadius)), or 6 when the radius is
// absent or not a number.
func SafeDistanceKm(severeRadius types.Scalar) int {
	r, ok := severeRadius.Float()
	if !ok || math.IsNaN(r) || math.IsInf(r, 0) {
		return MinSafeDistanceKm
	}
	return max(MinSafeDistanceKm, int(math.Round(r)))
}

// ComposeAlertBody renders the red-alert SMS. Numeric coordinates are rounded
// to three decimals; anything else is shown as received.
func ComposeAlertBody(lat, lon, severeRadius types.Scalar) string {
	radius := severeRadius.String()
	if severeRadius.Present() {
		radius += " km"
	}
	return fmt.Sprintf(
		"RED ALERT: asteroid impact predicted near %s, %s. Evacuate at least %d km from the impact point. Severe (5 psi) blast radius: %s. %s",
		lat.Fixed3(), lon.Fixed3(), SafeDistanceKm(severeRadius), radius, civilInstruction,
	)
}
