package model

// ExtractedFields holds the identifiers found in a message body. A nil field
// means the label was not present.
type ExtractedFields struct {
	RegistrationNumber *string `json:"registration_number,omitempty"`
	CertificateNumber  *string `json:"certificate_number,omitempty"`
	PolicyNumber       *string `json:"policy_number,omitempty"`
	ChassisNumber      *string `json:"chassis_number,omitempty"`
}

// OutboundMessage is a composed message ready for delivery.
type OutboundMessage struct {
	From    string
	To      string
	Cc      string
	Subject string
	Raw     []byte
}

// Recipients returns the envelope recipients, primary first.
func (m *OutboundMessage) Recipients() []string {
	rcpts := []string{m.To}
	if m.Cc != "" {
		rcpts = append(rcpts, m.Cc)
	}
	return rcpts
}
