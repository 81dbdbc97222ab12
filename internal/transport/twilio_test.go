package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTwilioSend(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser, gotPass string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		_ = r.ParseForm()
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	tw := &Twilio{
		AccountSID: "AC42",
		AuthToken:  "secret",
		FromNumber: "+15550001111",
		Endpoint:   srv.URL,
	}

	id, err := tw.Send(context.Background(), "+15551234567", Content{Body: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "SM123" {
		t.Fatalf("expected SM123, got %q", id)
	}
	if gotPath != "/2010-04-01/Accounts/AC42/Messages.json" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotUser != "AC42" || gotPass != "secret" {
		t.Fatalf("unexpected basic auth: %q/%q", gotUser, gotPass)
	}
	if gotTo != "+15551234567" || gotFrom != "+15550001111" || gotBody != "hello" {
		t.Fatalf("unexpected form: to=%q from=%q body=%q", gotTo, gotFrom, gotBody)
	}
}

func TestTwilioSendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"The 'To' number is not a valid phone number."}`))
	}))
	defer srv.Close()

	tw := &Twilio{AccountSID: "AC42", AuthToken: "secret", FromNumber: "+15550001111", Endpoint: srv.URL}

	_, err := tw.Send(context.Background(), "bad", Content{Body: "hello"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "not a valid phone number") {
		t.Fatalf("expected provider message in error, got %q", err.Error())
	}
}

func TestTwilioUnconfigured(t *testing.T) {
	tw := &Twilio{}
	if tw.Configured() {
		t.Fatal("expected unconfigured")
	}
	if _, err := tw.Send(context.Background(), "+15551234567", Content{Body: "x"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
