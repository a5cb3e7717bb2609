package model

import "time"

// TurnToken authorizes its identity to claim the slot right now.  It is
// minted for the head of the waiting queue when the slot frees and is
// single use.
type TurnToken struct {
    ID        string    // jti claim of the signed value
    Identity  string    // normalized email the token is addressed to
    Value     string    // signed token string sent to the requester
    ExpiresAt time.Time // end of the validity window
}
