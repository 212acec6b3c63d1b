package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type MessageRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderAddress  string    `json:"sender_address"`
	Content        string    `json:"content"`
	IsEncrypted    bool      `json:"is_encrypted"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type ParticipantRecord struct {
	UserAddress string     `json:"user_address"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty"`
}

type ConversationDetails struct {
	ID           string              `json:"id"`
	Type         string              `json:"type"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Participants []ParticipantRecord `json:"participants"`
}

// historySource — внешний коллаборатор: durable-история и метаданные диалога.
type historySource interface {
	Messages(ctx context.Context, conversationID string) ([]MessageRecord, error)
	Details(ctx context.Context, conversationID string) (*ConversationDetails, error)
	Accept(ctx context.Context, conversationID string) error
}

type restClient struct {
	baseURL string
	token   string
	address string
	hc      *http.Client
}

func newRESTClient(baseURL, token, address string, hc *http.Client) *restClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &restClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		address: address,
		hc:      hc,
	}
}

type messagesPage struct {
	Items      []MessageRecord `json:"items"`
	NextCursor string          `json:"next_cursor"`
}

// Messages выкачивает всю durable-историю диалога. Страницы приходят от
// новых к старым, результат разворачивается в порядок персистенции.
func (c *restClient) Messages(ctx context.Context, conversationID string) ([]MessageRecord, error) {
	var out []MessageRecord
	after := ""
	for {
		q := url.Values{"limit": {"200"}}
		if after != "" {
			q.Set("after", after)
		}
		var page messagesPage
		if err := c.get(ctx, "/conversations/"+conversationID+"/messages?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextCursor == "" {
			break
		}
		after = page.NextCursor
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (c *restClient) Details(ctx context.Context, conversationID string) (*ConversationDetails, error) {
	var d ConversationDetails
	if err := c.get(ctx, "/conversations/"+conversationID+"/details", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *restClient) Accept(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/accept", nil)
}

func (c *restClient) get(ctx context.Context, path string, dst any) error {
	return c.do(ctx, http.MethodGet, path, dst)
}

func (c *restClient) do(ctx context.Context, method, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Wallet-Address", c.address)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Error == "" {
			er.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, er.Error)
	}

	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
