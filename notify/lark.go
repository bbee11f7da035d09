package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/platformsec/tagsentry/telemetry"
)

const (
	defaultLarkBaseURL = "https://open.larksuite.com"

	// Tokens are refreshed this long before they expire so an in-flight
	// request never races the expiry.
	tokenRefreshMargin = 5 * time.Minute

	// Fallback TTL when the token endpoint omits the expire field.
	defaultTokenTTL = 2 * time.Hour
)

// SecretsAPI is the subset of the Secrets Manager client the notifier needs.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// larkCredentials is the secret payload stored in Secrets Manager.
type larkCredentials struct {
	AppID     string `json:"appId"`
	AppSecret string `json:"appSecret"`
	ChatID    string `json:"chatId"`
}

// tokenCache holds a tenant access token and its expiry. The cache is an
// explicit value owned by the notifier, not process-global state; it is only
// reused across invocations when the notifier itself is.
type tokenCache struct {
	token     string
	expiresAt time.Time
}

func (c tokenCache) valid(now time.Time) bool {
	return c.token != "" && c.expiresAt.After(now.Add(tokenRefreshMargin))
}

// LarkNotifier sends interactive violation cards to a Lark/Feishu chat.
type LarkNotifier struct {
	secrets    SecretsAPI
	secretName string
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
	logger     *telemetry.Logger

	mu    sync.Mutex
	cache tokenCache
}

// LarkOption customizes a LarkNotifier.
type LarkOption func(*LarkNotifier)

// WithLarkBaseURL overrides the API endpoint, used in tests.
func WithLarkBaseURL(url string) LarkOption {
	return func(n *LarkNotifier) { n.baseURL = url }
}

// WithLarkClock injects a clock, used in tests.
func WithLarkClock(now func() time.Time) LarkOption {
	return func(n *LarkNotifier) { n.now = now }
}

// NewLarkNotifier creates a notifier reading credentials from the named
// Secrets Manager secret.
func NewLarkNotifier(secrets SecretsAPI, secretName string, opts ...LarkOption) *LarkNotifier {
	n := &LarkNotifier{
		secrets:    secrets,
		secretName: secretName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultLarkBaseURL,
		now:        time.Now,
		logger:     telemetry.NewLogger("lark-notifier"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *LarkNotifier) Name() string { return "lark" }

// Notify sends the violation card to the configured chat.
func (n *LarkNotifier) Notify(ctx context.Context, violation Violation) error {
	creds, err := n.fetchCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch lark credentials: %w", err)
	}

	token, err := n.accessToken(ctx, creds)
	if err != nil {
		return fmt.Errorf("failed to get lark access token: %w", err)
	}

	card := buildComplianceCard(violation)
	messageID, err := n.sendCard(ctx, token, creds.ChatID, card)
	if err != nil {
		return err
	}

	n.logger.WithContext(ctx).Info().
		Str("message_id", messageID).
		Str("resource_type", violation.ResourceType).
		Msg("lark notification sent")

	return nil
}

func (n *LarkNotifier) fetchCredentials(ctx context.Context) (larkCredentials, error) {
	output, err := n.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(n.secretName),
	})
	if err != nil {
		return larkCredentials{}, err
	}

	var creds larkCredentials
	if err := json.Unmarshal([]byte(aws.ToString(output.SecretString)), &creds); err != nil {
		return larkCredentials{}, fmt.Errorf("failed to parse secret: %w", err)
	}
	if creds.AppID == "" || creds.AppSecret == "" || creds.ChatID == "" {
		return larkCredentials{}, fmt.Errorf("secret %s missing appId, appSecret or chatId", n.secretName)
	}
	return creds, nil
}

// accessToken returns a cached tenant access token, requesting a fresh one
// when the cache is empty or inside the refresh margin.
func (n *LarkNotifier) accessToken(ctx context.Context, creds larkCredentials) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cache.valid(n.now()) {
		return n.cache.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"app_id":     creds.AppID,
		"app_secret": creds.AppSecret,
	})
	if err != nil {
		return "", err
	}

	url := n.baseURL + "/open-apis/auth/v3/tenant_access_token/internal"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.Code != 0 {
		return "", fmt.Errorf("token request rejected: %s", body.Msg)
	}

	ttl := defaultTokenTTL
	if body.Expire > 0 {
		ttl = time.Duration(body.Expire) * time.Second
	}
	n.cache = tokenCache{
		token:     body.TenantAccessToken,
		expiresAt: n.now().Add(ttl),
	}
	return n.cache.token, nil
}

func (n *LarkNotifier) sendCard(ctx context.Context, token, chatID string, card map[string]any) (string, error) {
	content, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("failed to marshal card: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"receive_id": chatID,
		"msg_type":   "interactive",
		"content":    string(content),
	})
	if err != nil {
		return "", err
	}

	url := n.baseURL + "/open-apis/im/v1/messages?receive_id_type=chat_id"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send lark message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			MessageID string `json:"message_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode message response: %w", err)
	}
	if body.Code != 0 {
		return "", fmt.Errorf("lark message rejected: %s", body.Msg)
	}

	return body.Data.MessageID, nil
}
