package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultAPIURL        = "https://api.telegram.org"
	deleteWebhookTimeout = 5 * time.Second
)

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// deleteWebhook removes a webhook left over from a previous webhook-mode run so
// long polling can receive updates.
func deleteWebhook(ctx context.Context, client *resty.Client, apiURL, token string, dropPending bool) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	if client == nil {
		client = resty.New()
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	ctx, cancel := context.WithTimeout(ctx, deleteWebhookTimeout)
	defer cancel()

	var out apiResponse
	url := fmt.Sprintf("%s/bot%s/deleteWebhook", strings.TrimRight(apiURL, "/"), token)
	resp, err := client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"drop_pending_updates": strconv.FormatBool(dropPending)}).
		SetResult(&out).
		Post(url)
	if err != nil {
		return fmt.Errorf("deleteWebhook call failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("deleteWebhook status: %d", resp.StatusCode())
	}
	if !out.OK {
		return fmt.Errorf("deleteWebhook rejected: %s", out.Description)
	}
	return nil
}
