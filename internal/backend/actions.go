package backend

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

// Action names understood by the backend.
const (
	ActionGetAllMerchants = "GET_ALL_MERCHANTS"
	ActionGetMerchantFull = "GET_MERCHANT_FULL"
	ActionInitMerchant    = "INIT_MERCHANT"
	ActionUpdateMerchant  = "UPDATE_MERCHANT"
	ActionSaveOfficer     = "SAVE_OFFICER"
	ActionUpdateOfficer   = "UPDATE_OFFICER"
	ActionUpdateAnswers   = "UPDATE_ANSWERS"
	ActionAnalyzeDocument = "ANALYZE_DOCUMENT"
	ActionLogAudit        = "LOG_AUDIT"
)

var idempotent = map[string]bool{
	ActionGetAllMerchants: true,
	ActionGetMerchantFull: true,
	ActionUpdateMerchant:  true,
	ActionUpdateOfficer:   true,
	ActionUpdateAnswers:   true,
}

func (c *Client) GetAllMerchants(ctx context.Context) ([]Merchant, error) {
	var out []Merchant
	if err := c.Call(ctx, ActionGetAllMerchants, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetMerchantFull(ctx context.Context, merchantID string) (*MerchantFull, error) {
	var out MerchantFull
	err := c.Call(ctx, ActionGetMerchantFull, map[string]any{"merchant_id": merchantID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// InitMerchant creates the merchant row and its document folder.
func (c *Client) InitMerchant(ctx context.Context, fields map[string]string) (InitResult, error) {
	var out InitResult
	payload := fieldsPayload(fields, map[string]string{"status": string(constants.MerchantPendingReview)})
	if err := c.Call(ctx, ActionInitMerchant, payload, &out); err != nil {
		return InitResult{}, err
	}
	if out.MerchantID == "" {
		return InitResult{}, fmt.Errorf("backend %s: response has no merchant_id", ActionInitMerchant)
	}
	return out, nil
}

func (c *Client) UpdateMerchant(ctx context.Context, merchantID string, fields map[string]string) error {
	payload := fieldsPayload(fields, map[string]string{"merchant_id": merchantID})
	return c.Call(ctx, ActionUpdateMerchant, payload, nil)
}

func (c *Client) SetMerchantStatus(ctx context.Context, merchantID string, status constants.MerchantStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid merchant status %q", status)
	}
	payload := map[string]any{"merchant_id": merchantID, "status": string(status)}
	return c.Call(ctx, ActionUpdateMerchant, payload, nil)
}

func (c *Client) SaveOfficer(ctx context.Context, merchantID string, fields map[string]string) (SaveOfficerResult, error) {
	var out SaveOfficerResult
	payload := fieldsPayload(fields, map[string]string{"merchant_id": merchantID})
	if err := c.Call(ctx, ActionSaveOfficer, payload, &out); err != nil {
		return SaveOfficerResult{}, err
	}
	return out, nil
}

func (c *Client) UpdateOfficer(ctx context.Context, officerID string, fields map[string]string) error {
	payload := fieldsPayload(fields, map[string]string{"officer_id": officerID})
	return c.Call(ctx, ActionUpdateOfficer, payload, nil)
}

func (c *Client) UpdateAnswers(ctx context.Context, responseID string, answers map[string]any) error {
	payload := map[string]any{"response_id": responseID, "answers": answers}
	return c.Call(ctx, ActionUpdateAnswers, payload, nil)
}

func (c *Client) AnalyzeDocument(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var out AnalyzeResponse
	if err := c.Call(ctx, ActionAnalyzeDocument, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LogAudit(ctx context.Context, entry AuditEntry) error {
	return c.Call(ctx, ActionLogAudit, entry, nil)
}
