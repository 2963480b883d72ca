package models

// Credential is the login identifier, full password and one-time code of one run.
// Code is empty until the code page has been read and is cleared once submitted.
type Credential struct {
	Login    string
	Password string
	Code     string
}

// MaskedField is a position-tagged password input as seen by the fill step
type MaskedField struct {
	Position int  `json:"position"` // 1-based index into the password
	Enabled  bool `json:"enabled"`
}

// MaskedWrite is one planned single-character write to an enabled masked field
type MaskedWrite struct {
	Index    int    // Index of the field in the located sequence
	Position int    // 1-based password position
	Char     string // Exactly one character of the password
}
