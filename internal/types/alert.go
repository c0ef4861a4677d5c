package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// SevereThreshold is the overpressure band whose radius defines the severe
// zone of an impact.
const SevereThreshold = "5 psi"

// UnknownMarker is rendered in place of a severe radius the upstream did not
// report.
const UnknownMarker = "unknown"

// EventRedAlert is the name of the real-time event carrying BroadcastEvents.
const EventRedAlert = "red_alert"

// NotificationRequest is a single SMS to dispatch. ScheduledAt is nil for
// immediate sends.
type NotificationRequest struct {
	Recipient   string
	Body        string
	ScheduledAt *time.Time
}

// DispatchResult is the normalized outcome of one provider call.
type DispatchResult struct {
	OK    bool      `json:"ok"`
	SID   string    `json:"sid,omitempty"`
	Error string    `json:"error,omitempty"`
	Code  ErrorCode `json:"-"`
}

// DispatchSuccess builds a successful result carrying the provider message id.
func DispatchSuccess(sid string) DispatchResult {
	return DispatchResult{OK: true, SID: sid}
}

// DispatchFailure builds a failed result from an error. AppErrors keep their
// code; anything else is reported as a provider failure.
func DispatchFailure(err error) DispatchResult {
	res := DispatchResult{OK: false, Error: err.Error(), Code: ErrCodeUpstreamSMSProvider}
	var appErr *AppError
	if errors.As(err, &appErr) {
		res.Code = appErr.Code
		res.Error = appErr.Message
	}
	return res
}

// Scalar is a JSON scalar read from an upstream or client document without
// committing to its type. Numbers keep their original textual form so they can
// be rendered as-is; strings are unquoted.
type Scalar struct {
	text    string
	number  float64
	numeric bool
	present bool
}

// ScalarFromRaw interprets a raw JSON value. null or empty input yields an
// absent Scalar; objects and arrays keep their compact JSON text.
func ScalarFromRaw(raw json.RawMessage) Scalar {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Scalar{}
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if f, err := n.Float64(); err == nil {
			return Scalar{text: n.String(), number: f, numeric: true, present: true}
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		// Numeric strings are still numbers for rounding purposes.
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Scalar{text: s, number: f, numeric: true, present: true}
		}
		return Scalar{text: s, present: true}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return Scalar{text: string(raw), present: true}
	}
	return Scalar{text: compact.String(), present: true}
}

// NumberScalar builds a numeric Scalar.
func NumberScalar(f float64) Scalar {
	return Scalar{text: strconv.FormatFloat(f, 'f', -1, 64), number: f, numeric: true, present: true}
}

// Present reports whether a value was supplied.
func (s Scalar) Present() bool { return s.present }

// Float returns the numeric value and whether the scalar is numeric.
func (s Scalar) Float() (float64, bool) { return s.number, s.numeric }

// String returns the value as received, or UnknownMarker when absent.
func (s Scalar) String() string {
	if !s.present {
		return UnknownMarker
	}
	return s.text
}

// Fixed3 renders numeric values rounded to three decimals and everything
// else as received.
func (s Scalar) Fixed3() string {
	if s.numeric {
		return strconv.FormatFloat(s.number, 'f', 3, 64)
	}
	return s.String()
}

// MarshalJSON emits numbers as numbers, other present values as strings and
// absent values as null.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch {
	case !s.present:
		return []byte("null"), nil
	case s.numeric:
		return json.Marshal(s.number)
	default:
		return json.Marshal(s.text)
	}
}

// PredictionRequest is the body of POST /api/predict. Raw is forwarded to the
// prediction service byte for byte; the remaining fields are read from it.
type PredictionRequest struct {
	Raw         json.RawMessage
	Lat         Scalar
	Lon         Scalar
	NotifyPhone string
}

// ParsePredictionRequest reads the fields the bridge needs from a request body.
// The body must be a JSON object; all fields are optional here because the
// prediction service owns input validation.
func ParsePredictionRequest(raw []byte) (*PredictionRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, NewAppError(ErrCodeValidationInvalidJSON, "request body must be a JSON object", err)
	}
	if fields == nil {
		return nil, NewAppError(ErrCodeValidationInvalidJSON, "request body must be a JSON object", nil)
	}

	req := &PredictionRequest{
		Raw: append(json.RawMessage(nil), raw...),
		Lat: ScalarFromRaw(fields["lat"]),
		Lon: ScalarFromRaw(fields["lon"]),
	}
	if phone := ScalarFromRaw(fields["notify_phone"]); phone.Present() {
		req.NotifyPhone = phone.String()
	}
	return req, nil
}

// OverpressureBand is one (threshold, radius) entry of a prediction outcome.
type OverpressureBand struct {
	Threshold string
	Radius    Scalar
}

// PredictionOutcome is the prediction service's response. Only the fields the
// alert pipeline inspects are decoded; Raw is returned to callers untouched.
type PredictionOutcome struct {
	Raw            json.RawMessage
	HazardLevel    string
	RedAlert       bool
	EnergyMegatons Scalar
	Mode           string
	Overpressure   []OverpressureBand
}

// ParsePredictionOutcome decodes the inspected fields of an upstream response.
// Fields with unexpected types are treated as absent rather than rejected so
// that upstream schema additions never break the bridge.
func ParsePredictionOutcome(raw []byte) (*PredictionOutcome, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("prediction response is not a JSON object")
	}

	out := &PredictionOutcome{
		Raw:            append(json.RawMessage(nil), raw...),
		EnergyMegatons: ScalarFromRaw(fields["energy_megatons"]),
	}
	_ = json.Unmarshal(fields["hazard_level"], &out.HazardLevel)
	_ = json.Unmarshal(fields["red_alert"], &out.RedAlert)
	_ = json.Unmarshal(fields["mode"], &out.Mode)

	var bands []map[string]json.RawMessage
	if err := json.Unmarshal(fields["overpressure"], &bands); err == nil {
		for _, b := range bands {
			var threshold string
			_ = json.Unmarshal(b["threshold"], &threshold)
			out.Overpressure = append(out.Overpressure, OverpressureBand{
				Threshold: threshold,
				Radius:    ScalarFromRaw(b["radius_km"]),
			})
		}
	}
	return out, nil
}

// SevereRadius returns the radius of the 5 psi band, absent when the band is
// missing.
func (o *PredictionOutcome) SevereRadius() Scalar {
	for _, b := range o.Overpressure {
		if b.Threshold == SevereThreshold {
			return b.Radius
		}
	}
	return Scalar{}
}

// MarshalJSON writes the upstream document unchanged.
func (o *PredictionOutcome) MarshalJSON() ([]byte, error) {
	if len(o.Raw) == 0 {
		return []byte("null"), nil
	}
	return o.Raw, nil
}

// BroadcastSummary is the hazard digest pushed to live viewers.
type BroadcastSummary struct {
	HazardLevel    string `json:"hazardLevel"`
	EnergyEstimate Scalar `json:"energyEstimate"`
	SevereRadius   Scalar `json:"severeRadius"`
	Mode           string `json:"mode"`
}

// Location is the request's impact coordinate pair.
type Location struct {
	Lat Scalar `json:"lat"`
	Lon Scalar `json:"lon"`
}

// BroadcastEvent is published once per successful prediction.
type BroadcastEvent struct {
	Timestamp time.Time        `json:"timestamp"`
	Summary   BroadcastSummary `json:"summary"`
	Location  Location         `json:"location"`
}
