// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"fmt"

	"github.com/ManuGH/chargewalk/internal/session/model"
)

// ErrIllegalTransition classifies every rejected state+event pair.
var ErrIllegalTransition = errors.New("illegal transition")

// IllegalTransitionError carries the rejected pair and the forbidden reason.
type IllegalTransitionError struct {
	From   model.SessionState
	Event  EventKind
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: state=%s event=%s: %s", e.From, e.Event, e.Reason)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }
