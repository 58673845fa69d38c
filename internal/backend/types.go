package backend

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

// Text is a spreadsheet cell. The backend returns strings, numbers, booleans
// or null depending on how the cell was typed; all decode to a string.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(string(b))
	return nil
}

func (t Text) String() string { return string(t) }

type Merchant struct {
	MerchantID         Text `json:"merchant_id"`
	FolderID           Text `json:"folder_id,omitempty"`
	CompanyName        Text `json:"company_name"`
	RegistrationNumber Text `json:"registration_number,omitempty"`
	IncorporationDate  Text `json:"incorporation_date,omitempty"`
	Country            Text `json:"country,omitempty"`
	RegisteredAddress  Text `json:"registered_address,omitempty"`
	OperationalAddress Text `json:"operational_address,omitempty"`
	Status             Text `json:"status,omitempty"`
	CreatedAt          Text `json:"created_at,omitempty"`
}

type Officer struct {
	OfficerID          Text `json:"officer_id"`
	MerchantID         Text `json:"merchant_id"`
	FullName           Text `json:"full_name"`
	Role               Text `json:"role"`
	DOB                Text `json:"dob,omitempty"`
	PassportNumber     Text `json:"passport_number,omitempty"`
	ResidentialAddress Text `json:"residential_address,omitempty"`
}

type Answers struct {
	ResponseID Text           `json:"response_id"`
	FormID     Text           `json:"form_id,omitempty"`
	Answers    map[string]any `json:"answers"`
}

type MerchantFull struct {
	Company  Merchant  `json:"company"`
	Officers []Officer `json:"officers"`
	Answers  []Answers `json:"answers,omitempty"`
}

// InitResult carries the identifiers attached to later uploads.
type InitResult struct {
	MerchantID Text `json:"merchant_id"`
	FolderID   Text `json:"folder_id"`
}

type SaveOfficerResult struct {
	OfficerID Text `json:"officer_id"`
}

type AnalyzeRequest struct {
	FileBase64  string `json:"fileBase64"`
	FileName    string `json:"fileName"`
	MimeType    string `json:"mimeType"`
	DocCategory string `json:"docCategory"`
	MerchantID  string `json:"merchant_id,omitempty"`
	FolderID    string `json:"folder_id,omitempty"`
}

// AnalyzeResponse keeps the analysis raw so the caller can validate it.
type AnalyzeResponse struct {
	Analysis json.RawMessage `json:"analysis"`
	FileID   Text            `json:"file_id"`
	FileURL  Text            `json:"file_url"`
}

type AuditEntry struct {
	UserAction       string `json:"user_action"`
	TargetMerchantID string `json:"target_merchant_id"`
	Details          string `json:"details"`
}

// fieldsPayload copies non-empty fields and adds ids.
func fieldsPayload(fields map[string]string, ids map[string]string) map[string]any {
	out := make(map[string]any, len(fields)+len(ids))
	for k, v := range fields {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out[k] = v
	}
	for k, v := range ids {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// FilterByStatus keeps merchants whose status matches. An empty status keeps all.
func FilterByStatus(ms []Merchant, status constants.MerchantStatus) []Merchant {
	if status == "" {
		return ms
	}
	out := make([]Merchant, 0, len(ms))
	for _, m := range ms {
		if strings.EqualFold(strings.TrimSpace(m.Status.String()), string(status)) {
			out = append(out, m)
		}
	}
	return out
}
