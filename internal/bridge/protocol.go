// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/chargewalk/internal/geo"
	"github.com/ManuGH/chargewalk/internal/session/model"
)

var (
	// ErrMalformed marks an inbound message that could not be turned into a
	// command. The message is dropped.
	ErrMalformed = errors.New("bridge: malformed message")
	// ErrOriginNotAllowed marks a message from an origin outside the allow-list.
	ErrOriginNotAllowed = errors.New("bridge: origin not allowed")
)

// CommandType is the tag of an inbound web command.
type CommandType string

const (
	CmdSetChargerTarget      CommandType = "SET_CHARGER_TARGET"
	CmdSetAuthToken          CommandType = "SET_AUTH_TOKEN"
	CmdExclusiveActivated    CommandType = "EXCLUSIVE_ACTIVATED"
	CmdVisitVerified         CommandType = "VISIT_VERIFIED"
	CmdEndSession            CommandType = "END_SESSION"
	CmdRequestAlwaysLocation CommandType = "REQUEST_ALWAYS_LOCATION"
	CmdGetLocation           CommandType = "GET_LOCATION"
	CmdGetSessionState       CommandType = "GET_SESSION_STATE"
	CmdGetPermissionStatus   CommandType = "GET_PERMISSION_STATUS"
	CmdGetAuthToken          CommandType = "GET_AUTH_TOKEN"
)

var knownCommands = map[CommandType]struct{}{
	CmdSetChargerTarget:      {},
	CmdSetAuthToken:          {},
	CmdExclusiveActivated:    {},
	CmdVisitVerified:         {},
	CmdEndSession:            {},
	CmdRequestAlwaysLocation: {},
	CmdGetLocation:           {},
	CmdGetSessionState:       {},
	CmdGetPermissionStatus:   {},
	CmdGetAuthToken:          {},
}

// Envelope is the inbound wire shape.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// ExclusiveActivation is the payload of EXCLUSIVE_ACTIVATED.
type ExclusiveActivation struct {
	SessionID   string  `json:"sessionId"`
	MerchantID  string  `json:"merchantId"`
	MerchantLat float64 `json:"merchantLat"`
	MerchantLng float64 `json:"merchantLng"`
}

// VisitVerification is the payload of VISIT_VERIFIED.
type VisitVerification struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"verificationCode"`
}

// Command is a parsed inbound message. Exactly one payload field is set,
// matching Type; commands without a payload set none.
type Command struct {
	Type      CommandType
	RequestID string

	Charger   *model.ChargerTarget
	Exclusive *ExclusiveActivation
	Visit     *VisitVerification
	Token     string
}

type chargerPayload struct {
	ChargerID string   `json:"chargerId"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

type exclusivePayload struct {
	SessionID   string   `json:"sessionId"`
	MerchantID  string   `json:"merchantId"`
	MerchantLat *float64 `json:"merchantLat"`
	MerchantLng *float64 `json:"merchantLng"`
}

type tokenPayload struct {
	Token string `json:"token"`
}

// ParseCommand decodes raw into a Command. Every failure wraps ErrMalformed.
func ParseCommand(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	cmd := Command{Type: CommandType(env.Type), RequestID: env.RequestID}
	if _, ok := knownCommands[cmd.Type]; !ok {
		return cmd, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}

	switch cmd.Type {
	case CmdSetChargerTarget:
		var p chargerPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return cmd, err
		}
		id := strings.TrimSpace(p.ChargerID)
		if id == "" || p.Lat == nil || p.Lng == nil {
			return cmd, fmt.Errorf("%w: chargerId, lat and lng are required", ErrMalformed)
		}
		if !(geo.Point{Lat: *p.Lat, Lng: *p.Lng}).Valid() {
			return cmd, fmt.Errorf("%w: charger coordinate out of range", ErrMalformed)
		}
		cmd.Charger = &model.ChargerTarget{ID: id, Latitude: *p.Lat, Longitude: *p.Lng}

	case CmdExclusiveActivated:
		var p exclusivePayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return cmd, err
		}
		sid, mid := strings.TrimSpace(p.SessionID), strings.TrimSpace(p.MerchantID)
		if sid == "" || mid == "" || p.MerchantLat == nil || p.MerchantLng == nil {
			return cmd, fmt.Errorf("%w: sessionId, merchantId, merchantLat and merchantLng are required", ErrMalformed)
		}
		if !(geo.Point{Lat: *p.MerchantLat, Lng: *p.MerchantLng}).Valid() {
			return cmd, fmt.Errorf("%w: merchant coordinate out of range", ErrMalformed)
		}
		cmd.Exclusive = &ExclusiveActivation{
			SessionID:   sid,
			MerchantID:  mid,
			MerchantLat: *p.MerchantLat,
			MerchantLng: *p.MerchantLng,
		}

	case CmdVisitVerified:
		var p VisitVerification
		if err := decodePayload(env.Payload, &p); err != nil {
			return cmd, err
		}
		p.SessionID = strings.TrimSpace(p.SessionID)
		p.Code = NormalizeCode(p.Code)
		if p.SessionID == "" || p.Code == "" {
			return cmd, fmt.Errorf("%w: sessionId and verificationCode are required", ErrMalformed)
		}
		cmd.Visit = &p

	case CmdSetAuthToken:
		var p tokenPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return cmd, err
		}
		cmd.Token = strings.TrimSpace(p.Token)
		if cmd.Token == "" {
			return cmd, fmt.Errorf("%w: token is required", ErrMalformed)
		}
	}
	return cmd, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	return nil
}

// NormalizeCode folds a verification code typed on any keyboard (full-width
// digits, stray whitespace) into its canonical NFKC form.
func NormalizeCode(code string) string {
	return strings.TrimSpace(norm.NFKC.String(code))
}
