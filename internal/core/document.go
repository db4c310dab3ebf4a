package core

import "fmt"

// DocumentKey is the minimal identifier needed to request one invoice PDF.
type DocumentKey struct {
	InstallationID string `json:"installationId"`
	Month          string `json:"month"` // 2 digits
	Year           string `json:"year"`  // 4 digits
}

// Filename follows the "{installationId}-{month}-{year}.pdf" convention.
func (k DocumentKey) Filename() string {
	return fmt.Sprintf("%s-%s-%s.pdf", k.InstallationID, k.Month, k.Year)
}

// NewDocumentKey parses the billing month token for an installation.
func NewDocumentKey(installationID, billingMonth string) (DocumentKey, error) {
	m, err := ParseBillingMonth(billingMonth)
	if err != nil {
		return DocumentKey{}, err
	}
	return DocumentKey{InstallationID: installationID, Month: m.Month, Year: m.Year}, nil
}
