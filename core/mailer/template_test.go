package mailer

import (
	"strings"
	"testing"

	"github.com/ventaflow/ventabot/core/config"
)

func TestRenderConfirmation(t *testing.T) {
	subject, html, err := RenderConfirmation(OrderSummary{
		FullName:     "PEDRO SUAREZ",
		Quantity:     2,
		Total:        37,
		Address:      "Av. Arequipa 123",
		DeliveryDate: "15/09/2026",
	})
	if err != nil {
		t.Fatalf("RenderConfirmation: %v", err)
	}
	if subject == "" {
		t.Fatal("subject must not be empty")
	}
	for _, want := range []string{"PEDRO SUAREZ", "2 paquete(s)", "S/37.00", "Av. Arequipa 123", "15/09/2026"} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}

func TestRenderConfirmationEscapesHTML(t *testing.T) {
	_, html, err := RenderConfirmation(OrderSummary{FullName: "<script>alert(1)</script>"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatal("user-supplied values must be escaped")
	}
}

func TestNewSMTPWithoutHost(t *testing.T) {
	if m := NewSMTP(config.SMTPConfig{}); m != nil {
		t.Fatal("missing host must disable the mailer")
	}
}
