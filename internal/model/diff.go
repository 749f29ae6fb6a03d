package model

type DiscrepancyType string

const (
	DiscrepancyMissingOnServer DiscrepancyType = "missing_on_server"
	DiscrepancyMissingOnClient DiscrepancyType = "missing_on_client"
	DiscrepancyTypeMismatch    DiscrepancyType = "type_mismatch"
)

// Discrepancy is one structural difference between a client-observed
// tree and the authoritative server-side tree.
type Discrepancy struct {
	Type    DiscrepancyType `json:"type"`
	Path    string          `json:"path"`
	Message string          `json:"message"`
}

// DiffResult is the outcome of a structural comparison. IsMatch is true
// iff Differences is empty.
type DiffResult struct {
	IsMatch     bool          `json:"isMatch"`
	Differences []Discrepancy `json:"differences"`
}
