package telegram

import (
	"net/http"
	"testing"
	"time"
)

func TestBuildHTTPClientOutlastsLongPoll(t *testing.T) {
	client := BuildHTTPClient(25 * time.Second)
	base, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport = %T, want a plain *http.Transport", client.Transport)
	}
	if base.ResponseHeaderTimeout <= 25*time.Second {
		t.Fatalf("header timeout = %v", base.ResponseHeaderTimeout)
	}
	if client.Timeout <= base.ResponseHeaderTimeout {
		t.Fatalf("client timeout = %v, header timeout = %v", client.Timeout, base.ResponseHeaderTimeout)
	}
	if BuildHTTPClient(0).Timeout != defaultClientTimeout {
		t.Fatal("webhook client must keep the default timeout")
	}
}
