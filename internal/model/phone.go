package model

// PhoneType classifies a phone number's line type.
type PhoneType string

const (
	PhoneTypeWireless PhoneType = "Wireless"
	PhoneTypeLandline PhoneType = "Landline"
	PhoneTypeUnknown  PhoneType = "Unknown"
)

// LabeledPhone is a phone number with its classified line type.
type LabeledPhone struct {
	Number string    `json:"number"`
	Type   PhoneType `json:"type"`
}
