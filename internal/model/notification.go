package model

// NotificationKind tells the email collaborator which message to send.
type NotificationKind string

const (
    NotifyCodeIssued     NotificationKind = "codeIssued"     // one-time verification code
    NotifyTurnAvailable  NotificationKind = "turnAvailable"  // head of queue, carries a turn token
    NotifySessionEnded   NotificationKind = "sessionEnded"   // holder's slot expired or was reset
    NotifySessionStarted NotificationKind = "sessionStarted" // welcome mail after a grant
    NotifyNextInLine     NotificationKind = "nextInLine"     // head of queue while the slot is still busy
)
