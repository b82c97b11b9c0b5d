package types

import "time"

type OutcomeKind string

const (
	OutcomeMasterKeyToggled   OutcomeKind = "master_key_toggled"
	OutcomeRegistered         OutcomeKind = "registered"
	OutcomeAlreadyRegistered  OutcomeKind = "already_registered"
	OutcomeRegistrationFailed OutcomeKind = "registration_failed"
	OutcomeAccessGranted      OutcomeKind = "access_granted"
	OutcomeAccessDenied       OutcomeKind = "access_denied"

	// OutcomeModeOverride is the administrative toggle that bypasses the
	// master key. It never comes out of a tag scan.
	OutcomeModeOverride OutcomeKind = "mode_override"
)

// Outcome is the result of processing one scan. Response is the compact
// token written back to the reader or returned as the /nfc body; Summary is
// the human-readable text that is also stored as the journal result.
type Outcome struct {
	Kind             OutcomeKind `json:"kind"`
	TagID            string      `json:"uid"`
	Response         string      `json:"response"`
	Summary          string      `json:"summary"`
	DisplayName      string      `json:"name,omitempty"`
	RegistrationMode bool        `json:"registration_mode"`
	DecidedAt        time.Time   `json:"decided_at"`
}

type SystemStatus struct {
	RegistrationMode bool   `json:"registration_mode"`
	TotalUsers       int    `json:"total_users"`
	ScansToday       int    `json:"scans_today"`
	MasterKey        string `json:"master_key"`
	ServerUptime     string `json:"server_uptime"`
}
