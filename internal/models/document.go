package models

import (
	"encoding/json"
	"time"
)

// DocumentRecord is the structured result of OCR extraction for one user.
// One record exists per username; a re-upload replaces the previous record.
type DocumentRecord struct {
	Username     string `json:"username"`
	Name         string `json:"name,omitempty"`
	DOB          string `json:"dob,omitempty"`
	Mobile       string `json:"mobile,omitempty"`
	Aadhaar      string `json:"aadhaar,omitempty"`
	Address      string `json:"address,omitempty"`
	Gender       string `json:"gender,omitempty"`
	DocumentType string `json:"documentType,omitempty"`

	// Secondary fields, present only for some document types.
	BloodGroup string `json:"bloodGroup,omitempty"`
	FatherName string `json:"fatherName,omitempty"`
	PinCode    string `json:"pinCode,omitempty"`
	State      string `json:"state,omitempty"`
	PANNumber  string `json:"panNumber,omitempty"`
	DLNumber   string `json:"dlNumber,omitempty"`
	IssueDate  string `json:"issueDate,omitempty"`
	Validity   string `json:"validity,omitempty"`

	UploadedAt *time.Time `json:"uploadedAt,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// ToMap renders the record as a JSON-shaped document for the store and codec.
func (r *DocumentRecord) ToMap() map[string]any {
	data, err := json.Marshal(r)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// DocumentRecordFromMap rebuilds a record from a stored document. Unknown
// keys are ignored; missing keys become zero values.
func DocumentRecordFromMap(m map[string]any) (*DocumentRecord, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var r DocumentRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
