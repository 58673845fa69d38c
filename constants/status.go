package constants

// MerchantStatus is the review state stored by the backend. Store these exact strings.
type MerchantStatus string

const (
	MerchantPendingReview MerchantStatus = "Pending Review"
	MerchantApproved      MerchantStatus = "Approved"
	MerchantRejected      MerchantStatus = "Rejected"
)

func (s MerchantStatus) Valid() bool {
	switch s {
	case MerchantPendingReview, MerchantApproved, MerchantRejected:
		return true
	}
	return false
}

// RunOutcome is the canonical outcome for rows in extraction_runs.
type RunOutcome string

const (
	RunComplete RunOutcome = "COMPLETE" // both engines produced fields
	RunPartial  RunOutcome = "PARTIAL"  // one engine degraded or returned nothing
	RunFailed   RunOutcome = "FAILED"   // neither engine produced a field
)

// User-facing notices for an upload.
const (
	NoticePartialFailure = "partial failure"
	NoticeAnalysisFailed = "analysis failed"
)
