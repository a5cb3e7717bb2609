package model

import "time"

// VerificationTicket is a pending proof of email ownership.  Only the
// bcrypt hash of the one-time code is kept in memory.
type VerificationTicket struct {
    Identity string    // normalized email
    CodeHash string    // bcrypt hash of the six digit code
    IssuedAt time.Time // issue time; drives both cooldown and expiry
    Attempts int       // failed verification attempts so far
}

// VerifiedPass is what a successful verification leaves behind.  It lets
// the identity make one fresh claim within the verification window.
type VerifiedPass struct {
    Identity   string
    VerifiedAt time.Time
}
