package mailer

import (
	"net/smtp"
	"strings"
	"testing"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/config"
)

func TestDisabledMailerLogsInsteadOfSending(t *testing.T) {
	m := New(config.SMTPConfig{Host: "smtp.example.com", Port: 587})

	if m.Enabled() {
		t.Fatal("Expected mailer without credentials to be disabled")
	}
	if err := m.SendVerificationCode("to@example.com", "12345"); err != nil {
		t.Errorf("Disabled mailer must not fail: %v", err)
	}
}

func TestSendVerificationCode(t *testing.T) {
	m := New(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "sender@example.com",
		Password: "app-password",
		From:     "sender@example.com",
	})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, string(msg)
		return nil
	}

	if err := m.SendVerificationCode("parent@example.com", "54321"); err != nil {
		t.Fatalf("SendVerificationCode: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "sender@example.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "parent@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	if !strings.Contains(gotBody, "54321") {
		t.Error("Expected the code in the mail body")
	}
	if !strings.Contains(gotBody, "Subject: Verify Your Email") {
		t.Error("Expected the subject header in the mail body")
	}
}
