package models

// VerificationPayload is the JSON object embedded in a generated QR code. It
// asserts identity attributes as of VerifiedAt and is never persisted: its
// whole lifecycle is generate -> embed in QR -> scan -> discard.
//
// The wire format carries no version field; producers and consumers are
// decoupled only by the tolerant parser on the consuming side.
type VerificationPayload struct {
	DocType    string `json:"docType,omitempty"`
	VerifiedAt string `json:"verifiedAt,omitempty"`
	Username   string `json:"username,omitempty"`
	Name       string `json:"name,omitempty"`
	DOB        string `json:"dob,omitempty"`
	Mobile     string `json:"mobile,omitempty"`
	Aadhaar    string `json:"aadhaar,omitempty"`
	Address    string `json:"address,omitempty"`

	// Age is a dob placeholder, not a numeric age.
	Age string `json:"age,omitempty"`

	// VerificationRequested declares which attributes the verifier should
	// check; attributes absent or false are still usable for matching but
	// excluded from the displayed verdict.
	VerificationRequested map[string]bool `json:"verificationRequested,omitempty"`
}
