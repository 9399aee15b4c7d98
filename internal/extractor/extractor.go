package extractor

import (
	"regexp"
	"strings"

	"github.com/k3a/html2text"

	"reg-mail-forwarder-go/internal/model"
)

// space matches ASCII whitespace and Unicode separators such as NBSP.
const space = `[\s\p{Z}]`

var (
	registrationPattern = labelPattern(`Vehicle` + space + `+Registration`)
	certificatePattern  = labelPattern(`Certificate`)
	policyPattern       = labelPattern(`Policy`)
	chassisPattern      = labelPattern(`Chassis`)
)

// labelPattern matches "<label> # : TOKEN" with any spacing around '#' and ':'.
func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + space + `*#` + space + `*:?` + space + `*([A-Z0-9]+)`)
}

// ExtractRegistration finds the vehicle registration number in a message body.
// HTML bodies are flattened to text first because the label is often split
// across inline tags.
func ExtractRegistration(body string, isHTML bool) (string, bool) {
	if isHTML {
		body = StripHTML(body)
	}
	return match(registrationPattern, body)
}

// ExtractOtherFields finds the informational identifiers in a plain-text body.
func ExtractOtherFields(body string) model.ExtractedFields {
	var fields model.ExtractedFields
	fields.CertificateNumber = optional(match(certificatePattern, body))
	fields.PolicyNumber = optional(match(policyPattern, body))
	fields.ChassisNumber = optional(match(chassisPattern, body))
	return fields
}

// Extract returns every field found in the body.
func Extract(body string, isHTML bool) model.ExtractedFields {
	if isHTML {
		body = StripHTML(body)
	}
	fields := ExtractOtherFields(body)
	fields.RegistrationNumber = optional(match(registrationPattern, body))
	return fields
}

// StripHTML removes markup and collapses all whitespace, including line and
// block boundaries, to single spaces.
func StripHTML(body string) string {
	return strings.Join(strings.Fields(html2text.HTML2Text(body)), " ")
}

func match(re *regexp.Regexp, body string) (string, bool) {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func optional(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}
