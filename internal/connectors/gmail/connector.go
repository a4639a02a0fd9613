package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"salesmigrate/internal"
	"salesmigrate/internal/config"
)

// reportQuery narrows the listing to mail that can carry an export.
const reportQuery = "has:attachment"

type Connector struct {
	service *gmail.Service
	limiter *rateLimiter
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	return &Connector{service: svc, limiter: newRateLimiter(cfg.GmailRateLimitRPS)}, nil
}

func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	listResp, err := c.service.Users.Messages.List("me").
		LabelIds(label).
		Q(reportQuery).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		msg, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", ref.Id, err)
		}
		if msg.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(msg.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, messageFromRaw(ref.Id, msg.InternalDate, raw))
	}

	return out, nil
}

// messageFromRaw reads the envelope headers out of the raw message instead
// of paying for a second metadata call.
func messageFromRaw(id string, internalDateMillis int64, raw []byte) internal.FetchedMailMessage {
	out := internal.FetchedMailMessage{Provider: "gmail", MessageID: id, Raw: raw}

	received := time.Now().UTC()
	if internalDateMillis > 0 {
		received = time.UnixMilli(internalDateMillis).UTC()
	}

	if env, err := enmime.ReadEnvelope(bytes.NewReader(raw)); err == nil {
		out.Subject = env.GetHeader("Subject")
		out.From = env.GetHeader("From")
		if messageID := env.GetHeader("Message-ID"); messageID != "" {
			out.MessageID = messageID
		}
		if date := env.GetHeader("Date"); date != "" {
			if parsed, err := mail.ParseDate(date); err == nil {
				received = parsed.UTC()
			}
		}
	}
	out.ReceivedAt = received.Format(time.RFC3339)
	return out
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
