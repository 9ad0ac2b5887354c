package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ventaflow/ventabot/core/config"
	"github.com/ventaflow/ventabot/core/engine"
	"github.com/ventaflow/ventabot/core/engine/session"
	"github.com/ventaflow/ventabot/core/mailer"
	"github.com/ventaflow/ventabot/core/transport"
	"github.com/ventaflow/ventabot/core/verify"
)

type fakeVerifier struct {
	results map[string]verify.Result
	err     error
}

func (f *fakeVerifier) LookupDNI(_ context.Context, dni string) (verify.Result, error) {
	if f.err != nil {
		return verify.Result{}, f.err
	}
	res, ok := f.results[dni]
	if !ok {
		return verify.Result{}, verify.ErrNoMatch
	}
	return res, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []transport.Message
}

func (r *recorder) Send(_ context.Context, _ string, msgs ...transport.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if m.Text != "" {
			out = append(out, m.Text)
		}
	}
	return out
}

func (r *recorder) lastText() string {
	ts := r.texts()
	if len(ts) == 0 {
		return ""
	}
	return ts[len(ts)-1]
}

func (r *recorder) countTexts() int {
	return len(r.texts())
}

func testPricing() config.PricingConfig {
	return config.PricingConfig{UnitPrice: 15, DeliverySurcharge: 7, FreeDeliveryMin: 3}
}

type bench struct {
	eng   *engine.Engine
	out   *recorder
	store session.Store
}

func newBench(t *testing.T, deps Deps) *bench {
	t.Helper()
	if deps.Verifier == nil {
		deps.Verifier = &fakeVerifier{results: map[string]verify.Result{
			"12345678": {FullName: "PEDRO SUAREZ VERTIZ", VerificationCode: "4"},
		}}
	}
	if deps.Pricing.UnitPrice == 0 {
		deps.Pricing = testPricing()
	}
	if deps.Now == nil {
		// A Wednesday; delivery lands on Saturday the 29th.
		deps.Now = func() time.Time { return time.Date(2026, time.August, 26, 10, 0, 0, 0, time.UTC) }
	}

	reg, err := Build(deps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := &recorder{}
	store := session.NewMemoryStore()
	eng := engine.New(reg, store, out, engine.Config{})
	t.Cleanup(eng.Close)
	return &bench{eng: eng, out: out, store: store}
}

func (b *bench) say(t *testing.T, body string) {
	t.Helper()
	before := b.out.countTexts()
	b.eng.HandleInbound(transport.Inbound{Identity: "51999999999", Body: body})
	deadline := time.Now().Add(2 * time.Second)
	for b.out.countTexts() == before {
		if time.Now().After(deadline) {
			t.Fatalf("no reply to %q", body)
		}
		time.Sleep(time.Millisecond)
	}
	// Chained steps may still be emitting; wait for the burst to settle.
	last := b.out.countTexts()
	for {
		time.Sleep(15 * time.Millisecond)
		cur := b.out.countTexts()
		if cur == last {
			return
		}
		last = cur
		if time.Now().After(deadline) {
			t.Fatalf("replies to %q never settled", body)
		}
	}
}

func (b *bench) expectLast(t *testing.T, want string) {
	t.Helper()
	if got := b.out.lastText(); got != want {
		t.Fatalf("last message = %q, want %q", got, want)
	}
}

func TestHappyPathOrder(t *testing.T) {
	fm := &fakeMailer{}
	b := newBench(t, Deps{Mailer: fm, Contact: config.ContactConfig{
		Phone: "+51 999 999 999",
		Email: "contacto@example.com",
	}})

	b.say(t, "Hola")
	b.expectLast(t, msgAgreementPrompt)

	b.say(t, "Sí")
	b.expectLast(t, msgEngagePrompt)

	b.say(t, "si")
	b.expectLast(t, msgDNIPrompt)

	b.say(t, "12345678")
	b.expectLast(t, msgCodePrompt)

	b.say(t, "4")
	b.expectLast(t, msgQuantityPrompt)

	b.say(t, "2")
	texts := b.out.texts()
	priceMsg := texts[len(texts)-2]
	if !strings.Contains(priceMsg, "S/37.00") {
		t.Fatalf("price message = %q, want S/37.00 for 2 packages", priceMsg)
	}
	b.expectLast(t, msgAddressPrompt)

	b.say(t, "Av. Arequipa 123, Lince")
	b.expectLast(t, msgConfirmPrompt)
	summary := findContaining(t, b.out.texts(), "¿Confirmas tu pedido")
	for _, want := range []string{"2 paquete(s)", "S/37.00", "Av. Arequipa 123, Lince", "sábado, 29 de agosto de 2026"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary %q missing %q", summary, want)
		}
	}

	b.say(t, "sí")
	b.expectLast(t, msgEmailPrompt)

	b.say(t, "pedro@example.com")
	all := strings.Join(b.out.texts(), "\n")
	for _, want := range []string{msgEmailSending, msgOrderComplete, msgFarewell, msgContactHeader} {
		if !strings.Contains(all, want) {
			t.Fatalf("transcript missing %q", want)
		}
	}

	if len(fm.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(fm.sent))
	}
	if fm.sent[0].To != "pedro@example.com" {
		t.Fatalf("mail to = %q", fm.sent[0].To)
	}
	if !strings.Contains(fm.sent[0].HTML, "PEDRO SUAREZ VERTIZ") {
		t.Fatal("mail body missing customer name")
	}

	if b.store.Len() != 0 {
		t.Fatal("farewell must clear the session")
	}
}

func TestLargeOrderSkipsSurcharge(t *testing.T) {
	b := newBench(t, Deps{})

	b.say(t, "hola")
	b.say(t, "sí")
	b.say(t, "sí")
	b.say(t, "12345678")
	b.say(t, "4")
	b.say(t, "5")

	texts := b.out.texts()
	priceMsg := texts[len(texts)-2]
	if !strings.Contains(priceMsg, "S/75.00") || !strings.Contains(priceMsg, "sin recargo") {
		t.Fatalf("price message = %q, want S/75.00 without surcharge", priceMsg)
	}
}

func TestQuantityRejectsZero(t *testing.T) {
	b := newBench(t, Deps{})

	b.say(t, "hola")
	b.say(t, "sí")
	b.say(t, "sí")
	b.say(t, "12345678")
	b.say(t, "4")
	b.say(t, "0")

	texts := b.out.texts()
	if texts[len(texts)-2] != msgQuantityInvalid {
		t.Fatalf("expected invalid-quantity override, got %q", texts[len(texts)-2])
	}
	b.expectLast(t, msgQuantityPrompt)
}

func TestBadDNIFormatFallsBack(t *testing.T) {
	b := newBench(t, Deps{})

	b.say(t, "hola")
	b.say(t, "sí")
	b.say(t, "sí")
	b.say(t, "51999")

	texts := b.out.texts()
	if texts[len(texts)-2] != msgDNIBadFormat {
		t.Fatalf("expected DNI format error, got %q", texts[len(texts)-2])
	}
	b.expectLast(t, msgDNIPrompt)
}

func TestCodeMismatchFallsBack(t *testing.T) {
	b := newBench(t, Deps{})

	b.say(t, "hola")
	b.say(t, "sí")
	b.say(t, "sí")
	b.say(t, "12345678")
	b.say(t, "9")

	texts := b.out.texts()
	if texts[len(texts)-2] != msgCodeMismatch {
		t.Fatalf("expected code mismatch, got %q", texts[len(texts)-2])
	}
	b.expectLast(t, msgCodePrompt)
}

func TestVerifierTechnicalErrorFallsBack(t *testing.T) {
	b := newBench(t, Deps{Verifier: &fakeVerifier{err: errors.New("connection refused")}})

	b.say(t, "hola")
	b.say(t, "sí")
	b.say(t, "sí")
	b.say(t, "12345678")
	b.say(t, "4")

	texts := b.out.texts()
	if texts[len(texts)-2] != msgVerifyTechError {
		t.Fatalf("expected technical error message, got %q", texts[len(texts)-2])
	}
}

func TestDecliningTermsEndsConversation(t *testing.T) {
	b := newBench(t, Deps{})

	b.say(t, "hola")
	b.say(t, "no quiero")

	all := strings.Join(b.out.texts(), "\n")
	if !strings.Contains(all, msgTermsDeclined) || !strings.Contains(all, msgFarewell) {
		t.Fatalf("transcript missing decline path: %q", all)
	}
	if b.store.Len() != 0 {
		t.Fatal("declined conversation must end cleared")
	}
}

func TestOrderDeclineReturnsToWelcome(t *testing.T) {
	b := newBench(t, Deps{})

	b.say(t, "hola")
	b.say(t, "sí")
	b.say(t, "sí")
	b.say(t, "12345678")
	b.say(t, "4")
	b.say(t, "3")
	b.say(t, "Jr. Unión 500")
	b.say(t, "no")

	all := strings.Join(b.out.texts(), "\n")
	if !strings.Contains(all, msgOrderDeclined) {
		t.Fatal("expected decline acknowledgement")
	}
	b.expectLast(t, msgAgreementPrompt)
}

func TestEngageTimeoutGoesToFarewell(t *testing.T) {
	b := newBench(t, Deps{EngageIdle: 50 * time.Millisecond})

	b.say(t, "hola")
	b.say(t, "sí")
	b.expectLast(t, msgEngagePrompt)

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(strings.Join(b.out.texts(), "\n"), msgEngageTimeout) {
		if time.Now().After(deadline) {
			t.Fatal("idle timeout never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	deadline = time.Now().Add(2 * time.Second)
	for b.store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed-out conversation must end cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
	all := strings.Join(b.out.texts(), "\n")
	if !strings.Contains(all, msgFarewell) {
		t.Fatal("timeout must route to the farewell flow")
	}
}

func TestMailFailureStillCompletesOrder(t *testing.T) {
	fm := &fakeMailer{err: fmt.Errorf("smtp unavailable")}
	b := newBench(t, Deps{Mailer: fm})

	b.say(t, "hola")
	b.say(t, "sí")
	b.say(t, "sí")
	b.say(t, "12345678")
	b.say(t, "4")
	b.say(t, "3")
	b.say(t, "Jr. Unión 500")
	b.say(t, "sí")
	b.say(t, "pedro@example.com")

	all := strings.Join(b.out.texts(), "\n")
	if !strings.Contains(all, msgEmailSendFail) {
		t.Fatal("mail failure must be reported to the user")
	}
	if !strings.Contains(all, msgOrderComplete) || !strings.Contains(all, msgFarewell) {
		t.Fatal("mail failure must not break the conversation")
	}
}

func findContaining(t *testing.T, texts []string, needle string) string {
	t.Helper()
	for _, s := range texts {
		if strings.Contains(s, needle) {
			return s
		}
	}
	t.Fatalf("no message containing %q", needle)
	return ""
}
