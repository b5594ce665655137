package upload

import (
	"errors"
	"strings"
	"testing"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
		missing string
	}{
		{"complete", Credentials{Site: "www.hamichlol.org.il", Username: "u", Password: "p"}, false, ""},
		{"no site", Credentials{Site: "  ", Username: "u", Password: "p"}, true, "site"},
		{"no password", Credentials{Site: "s", Username: "u"}, true, "password"},
		{"nothing", Credentials{}, true, "site, username, password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.missing) {
				t.Errorf("expected %q in %q", tt.missing, err.Error())
			}
		})
	}
}

func TestRequestValidate(t *testing.T) {
	if err := (Request{}).Validate(); !errors.Is(err, ErrNoFiles) {
		t.Errorf("expected ErrNoFiles, got %v", err)
	}
	if err := (Request{Paths: []string{"a.png"}}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total, expected int
	}{
		{1, 2, 50},
		{2, 2, 100},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 8, 13},
		{0, 0, 100},
	}
	for _, tt := range tests {
		if got := percent(tt.done, tt.total); got != tt.expected {
			t.Errorf("percent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.expected)
		}
	}
}

func TestFailedAndMessages(t *testing.T) {
	results := []Result{
		{Success: true, Message: successMessage("A.png")},
		{Success: false, Message: failureMessage("B.png", "boom")},
	}
	if !Failed(results) {
		t.Error("expected Failed to be true")
	}
	if Failed(results[:1]) {
		t.Error("expected Failed to be false for all-success results")
	}

	msgs := Messages(results)
	want := []string{"File A.png uploaded successfully", "Error uploading B.png: boom"}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, msgs[i], want[i])
		}
	}
}
