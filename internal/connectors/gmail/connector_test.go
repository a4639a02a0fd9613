package gmail

import (
	"encoding/base64"
	"testing"
)

const sampleRaw = "From: Shop <shop@example.com>\r\n" +
	"Subject: Sales report\r\n" +
	"Message-ID: <r1@example.com>\r\n" +
	"Date: Wed, 02 Apr 2025 10:00:00 +0530\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"see attached\r\n"

func TestMessageFromRawReadsHeaders(t *testing.T) {
	msg := messageFromRaw("abc", 0, []byte(sampleRaw))
	if msg.Provider != "gmail" || msg.MessageID != "<r1@example.com>" || msg.Subject != "Sales report" {
		t.Fatalf("msg=%+v", msg)
	}
	if msg.ReceivedAt != "2025-04-02T04:30:00Z" {
		t.Fatalf("received=%s", msg.ReceivedAt)
	}
}

func TestMessageFromRawFallsBackToGmailID(t *testing.T) {
	msg := messageFromRaw("abc", 1743568200000, []byte("Subject: x\r\n\r\nbody"))
	if msg.MessageID != "abc" {
		t.Fatalf("id=%s", msg.MessageID)
	}
	if msg.ReceivedAt != "2025-04-02T04:30:00Z" {
		t.Fatalf("received=%s", msg.ReceivedAt)
	}
}

func TestDecodeBase64URL(t *testing.T) {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		got, err := decodeBase64URL(enc.EncodeToString([]byte("raw?>")))
		if err != nil || string(got) != "raw?>" {
			t.Fatalf("got=%q err=%v", got, err)
		}
	}
}
