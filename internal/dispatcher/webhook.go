package dispatcher

import (
	"context"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

// WebhookEvent is one of the four payload kinds a remote container's
// callback may carry (§4.5 step 4, §6's webhook receiver).
type WebhookEvent string

const (
	WebhookActivity WebhookEvent = "activity"
	WebhookPortData WebhookEvent = "port-data"
	WebhookComplete WebhookEvent = "complete"
	WebhookError    WebhookEvent = "error"
)

// WebhookPayload is the decoded body of POST /exec/{executionId}/event.
type WebhookPayload struct {
	Event WebhookEvent

	// NodeID, Outputs, ContextUpdates apply to WebhookPortData.
	NodeID         string
	Outputs        map[string]any
	ContextUpdates map[string]any

	// ActivityType, ActivityPayload apply to WebhookActivity.
	ActivityType    string
	ActivityPayload map[string]any

	// CompletionStatus applies to WebhookComplete.
	CompletionStatus string

	// ErrorMessage applies to WebhookError.
	ErrorMessage string
}

// HandleWebhook verifies bearerToken against executionID (§8 property 8:
// a token scoped to a different execution is rejected), checks it has not
// already been revoked by a prior terminal event, and applies payload to
// the execution's state. Authentication failures are returned as
// apperrors.KindUnauthorizedWebhook for the HTTP layer to drop silently and
// log per §4.5/§7 ("not retried, assumed forged").
func (d *Dispatcher) HandleWebhook(ctx context.Context, executionID, bearerToken string, payload WebhookPayload) error {
	if d.revocations.IsRevoked(executionID) {
		return apperrors.Errorf(apperrors.KindUnauthorizedWebhook, "dispatcher.HandleWebhook", "execution %q's token has already been invalidated", executionID)
	}
	if _, err := d.signer.Verify(bearerToken, executionID); err != nil {
		return err
	}

	switch payload.Event {
	case WebhookActivity:
		d.interp.RemoteActivity(ctx, executionID, payload.ActivityType, payload.ActivityPayload)
		return nil

	case WebhookPortData:
		return d.interp.RemotePortUpdate(ctx, executionID, payload.NodeID, payload.Outputs, payload.ContextUpdates)

	case WebhookComplete:
		if err := d.interp.RemoteComplete(ctx, executionID, payload.CompletionStatus); err != nil {
			return err
		}
		d.cleanup(executionID)
		return nil

	case WebhookError:
		cause := apperrors.New(apperrors.KindProviderError, "dispatcher.HandleWebhook", payload.ErrorMessage)
		if err := d.interp.RemoteFail(ctx, executionID, cause); err != nil {
			return err
		}
		d.cleanup(executionID)
		return nil

	default:
		return apperrors.Errorf(apperrors.KindValidation, "dispatcher.HandleWebhook", "unknown webhook event %q", payload.Event)
	}
}
