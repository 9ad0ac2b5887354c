// Package flows defines the sales dialogue: welcome and terms, engagement,
// identity verification, order sizing, delivery details, confirmation,
// e-mail notification, and farewell.
package flows

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ventaflow/ventabot/core/config"
	"github.com/ventaflow/ventabot/core/document"
	"github.com/ventaflow/ventabot/core/engine/flow"
	"github.com/ventaflow/ventabot/core/engine/session"
	"github.com/ventaflow/ventabot/core/logger"
	"github.com/ventaflow/ventabot/core/mailer"
	"github.com/ventaflow/ventabot/core/storage"
	"github.com/ventaflow/ventabot/core/transport"
	"github.com/ventaflow/ventabot/core/verify"
)

// Flow names double as advance targets.
const (
	FlowWelcome  = "welcome"
	FlowEngage   = "engage"
	FlowDNI      = "dni"
	FlowCode     = "code"
	FlowQuantity = "quantity"
	FlowAddress  = "address"
	FlowConfirm  = "confirm"
	FlowEmail    = "email"
	FlowFarewell = "farewell"
)

// Session field keys.
const (
	fieldDNI          = "dni"
	fieldName         = "name"
	fieldQuantity     = "quantity"
	fieldTotal        = "total"
	fieldAddress      = "address"
	fieldEmail        = "email"
	fieldDeliveryDate = "delivery_date"
)

var (
	dniRe   = regexp.MustCompile(`^\d{8}$`)
	codeRe  = regexp.MustCompile(`^\d$`)
	emailRe = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.[a-zA-Z]{2,4}$`)
)

// Deps wires the flows to their collaborators. Mailer and Archive may be
// nil: both are best-effort features and their absence only logs.
type Deps struct {
	Verifier verify.Client
	Mailer   mailer.Mailer
	Renderer document.Renderer
	Archive  *storage.Orders
	Pricing  config.PricingConfig
	Contact  config.ContactConfig
	// Now is the clock used for delivery date computation. Defaults to
	// time.Now.
	Now func() time.Time

	// EngageIdle overrides the engagement timeout. Defaults to 60 s.
	EngageIdle time.Duration
}

// Build assembles and validates the full dialogue registry.
func Build(deps Deps) (*flow.Registry, error) {
	if deps.Verifier == nil {
		return nil, fmt.Errorf("flows: verifier is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.EngageIdle <= 0 {
		deps.EngageIdle = 60 * time.Second
	}

	reg := flow.NewRegistry()
	builders := []*flow.Builder{
		welcomeFlow(deps),
		engageFlow(deps),
		dniFlow(),
		codeFlow(deps),
		quantityFlow(deps),
		addressFlow(),
		confirmFlow(deps),
		emailFlow(deps),
		farewellFlow(deps),
	}
	for _, b := range builders {
		f, err := b.Build()
		if err != nil {
			return nil, err
		}
		if err := reg.Add(f); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func isYes(body string) bool {
	s := strings.ToLower(strings.TrimSpace(body))
	return s == "sí" || s == "si"
}

func isNo(body string) bool {
	return strings.ToLower(strings.TrimSpace(body)) == "no"
}

func welcomeFlow(deps Deps) *flow.Builder {
	termsStep := flow.Step{Prompts: transport.Texts(msgTermsNotice)}
	if deps.Renderer != nil {
		pdf, err := deps.Renderer.Render(document.KindTerms, document.Data{
			UnitPrice:       deps.Pricing.UnitPrice,
			Surcharge:       deps.Pricing.DeliverySurcharge,
			FreeDeliveryMin: deps.Pricing.FreeDeliveryMin,
			ContactPhone:    deps.Contact.Phone,
			ContactEmail:    deps.Contact.Email,
		})
		if err != nil {
			logger.Warn(logger.Background(), "flows", "terms.render.error",
				slog.Any("err", err),
			)
		} else {
			termsStep.Prompts = append(termsStep.Prompts, transport.Message{
				Document: &transport.Document{
					Name:    "terminos_y_condiciones.pdf",
					MIME:    "application/pdf",
					Data:    pdf,
					Caption: "Términos y Condiciones",
				},
			})
		}
	}

	return flow.New(FlowWelcome, "hola", "ola", "buenas", "menu", "inicio", "m").
		Say(msgWelcomeGreeting, msgWelcomeOffer, msgWelcomeTerms, msgWelcomeClose).
		Step(termsStep).
		Ask(msgAgreementPrompt, func(inv *flow.Invocation) (flow.Action, error) {
			if isYes(inv.Body) {
				return flow.GoTo(FlowEngage), nil
			}
			if err := inv.Say(msgTermsDeclined); err != nil {
				return flow.Action{}, err
			}
			return flow.GoTo(FlowFarewell), nil
		}, FlowEngage, FlowFarewell)
}

func engageFlow(deps Deps) *flow.Builder {
	return flow.New(FlowEngage).
		AskIdle(msgEngagePrompt, deps.EngageIdle, func(inv *flow.Invocation) (flow.Action, error) {
			switch {
			case inv.TimedOut:
				if err := inv.Say(msgEngageTimeout); err != nil {
					return flow.Action{}, err
				}
				return flow.GoTo(FlowFarewell), nil
			case isYes(inv.Body):
				return flow.GoTo(FlowDNI), nil
			case isNo(inv.Body):
				if err := inv.Say(msgEngageDeclined); err != nil {
					return flow.Action{}, err
				}
				return flow.GoTo(FlowFarewell), nil
			default:
				return flow.Fallback(msgYesNoFallback), nil
			}
		}, FlowDNI, FlowFarewell)
}

func dniFlow() *flow.Builder {
	return flow.New(FlowDNI).
		Ask(msgDNIPrompt, func(inv *flow.Invocation) (flow.Action, error) {
			dni := strings.TrimSpace(inv.Body)
			if !dniRe.MatchString(dni) {
				return flow.Fallback(msgDNIBadFormat), nil
			}
			inv.Session.Set(fieldDNI, dni)
			return flow.GoTo(FlowCode), nil
		}, FlowCode)
}

func codeFlow(deps Deps) *flow.Builder {
	return flow.New(FlowCode).
		Ask(msgCodePrompt, func(inv *flow.Invocation) (flow.Action, error) {
			code := strings.TrimSpace(inv.Body)
			if !codeRe.MatchString(code) {
				return flow.Fallback(msgCodeBadFormat), nil
			}
			dni, _ := inv.Session.GetString(fieldDNI)

			res, err := deps.Verifier.LookupDNI(inv.Context(), dni)
			switch {
			case errors.Is(err, verify.ErrNoMatch):
				return flow.Fallback(msgDNINotFound), nil
			case err != nil:
				return flow.Fallback(msgVerifyTechError), nil
			case res.VerificationCode != code:
				return flow.Fallback(msgCodeMismatch), nil
			}

			inv.Session.Set(fieldName, res.FullName)
			inv.Session.SetFlag(session.FlagValidated)
			if err := inv.Say(fmt.Sprintf("✅ ¡Gracias! Tu DNI ha sido validado, %s.", res.FullName)); err != nil {
				return flow.Action{}, err
			}
			return flow.GoTo(FlowQuantity), nil
		}, FlowQuantity)
}

func quantityFlow(deps Deps) *flow.Builder {
	return flow.New(FlowQuantity).
		Ask(msgQuantityPrompt, func(inv *flow.Invocation) (flow.Action, error) {
			qty, err := strconv.Atoi(strings.TrimSpace(inv.Body))
			if err != nil || qty <= 0 {
				return flow.Fallback(msgQuantityInvalid), nil
			}

			total := float64(qty) * deps.Pricing.UnitPrice
			var msg string
			if qty >= deps.Pricing.FreeDeliveryMin {
				msg = fmt.Sprintf("¡Excelente! Has elegido %d paquetes. El total a pagar es de *S/%.2f* (sin recargo de envío).", qty, total)
			} else {
				total += deps.Pricing.DeliverySurcharge
				msg = fmt.Sprintf("Has elegido %d paquete(s). El total a pagar es de *S/%.2f* (incluye S/%.0f de recargo por envío a Lima).",
					qty, total, deps.Pricing.DeliverySurcharge)
			}

			inv.Session.Set(fieldQuantity, qty)
			inv.Session.Set(fieldTotal, total)
			if err := inv.Say(msg); err != nil {
				return flow.Action{}, err
			}
			return flow.GoTo(FlowAddress), nil
		}, FlowAddress)
}

func addressFlow() *flow.Builder {
	return flow.New(FlowAddress).
		Ask(msgAddressPrompt, func(inv *flow.Invocation) (flow.Action, error) {
			inv.Session.Set(fieldAddress, strings.TrimSpace(inv.Body))
			if err := inv.Say(msgAddressReceived); err != nil {
				return flow.Action{}, err
			}
			return flow.GoTo(FlowConfirm), nil
		}, FlowConfirm)
}

func confirmFlow(deps Deps) *flow.Builder {
	return flow.New(FlowConfirm).
		Run(msgProcessing, func(inv *flow.Invocation) (flow.Action, error) {
			delivery := FormatSpanishDate(NextDeliveryDate(deps.Now()))
			inv.Session.Set(fieldDeliveryDate, delivery)

			qty, _ := inv.Session.GetInt(fieldQuantity)
			total, _ := inv.Session.GetFloat(fieldTotal)
			address, _ := inv.Session.GetString(fieldAddress)

			summary := fmt.Sprintf(
				"Las entregas se realizan solo los sábados y domingos. Si hiciste tu pedido hoy, la entrega será el próximo *%s*."+
					"\n\n¿Confirmas tu pedido de *%d paquete(s)* de bolsas negras para el día *%s* en la dirección *%s* por un total de *S/%.2f* a pagar contraentrega?",
				delivery, qty, delivery, address, total)
			if err := inv.Say(summary); err != nil {
				return flow.Action{}, err
			}
			return flow.Next(), nil
		}).
		Ask(msgConfirmPrompt, func(inv *flow.Invocation) (flow.Action, error) {
			switch {
			case isYes(inv.Body):
				inv.Session.SetFlag(session.FlagOrderConfirmed)
				if err := inv.Say(msgOrderConfirmed); err != nil {
					return flow.Action{}, err
				}
				return flow.GoTo(FlowEmail), nil
			case isNo(inv.Body):
				if err := inv.Say(msgOrderDeclined); err != nil {
					return flow.Action{}, err
				}
				return flow.GoTo(FlowWelcome), nil
			default:
				return flow.Fallback(msgYesNoFallback), nil
			}
		}, FlowEmail, FlowWelcome)
}

func emailFlow(deps Deps) *flow.Builder {
	return flow.New(FlowEmail).
		Ask(msgEmailPrompt, func(inv *flow.Invocation) (flow.Action, error) {
			email := strings.TrimSpace(inv.Body)
			if !emailRe.MatchString(email) {
				return flow.Fallback(msgEmailBad), nil
			}
			inv.Session.Set(fieldEmail, email)

			if !inv.Session.HasFlag(session.FlagOrderConfirmed) {
				if err := inv.Say(msgNotConfirmed); err != nil {
					return flow.Action{}, err
				}
				return flow.GoTo(FlowWelcome), nil
			}

			if err := inv.Say(msgEmailSending); err != nil {
				return flow.Action{}, err
			}
			finishOrder(deps, inv, email)
			if err := inv.Say(msgOrderComplete); err != nil {
				return flow.Action{}, err
			}
			return flow.GoTo(FlowFarewell), nil
		}, FlowFarewell, FlowWelcome)
}

// finishOrder sends the confirmation e-mail and archives the order. Both
// are best effort: failures log and notify but never break the dialogue.
func finishOrder(deps Deps, inv *flow.Invocation, email string) {
	ctx := inv.Context()
	name, _ := inv.Session.GetString(fieldName)
	dni, _ := inv.Session.GetString(fieldDNI)
	qty, _ := inv.Session.GetInt(fieldQuantity)
	total, _ := inv.Session.GetFloat(fieldTotal)
	address, _ := inv.Session.GetString(fieldAddress)
	delivery, _ := inv.Session.GetString(fieldDeliveryDate)

	var attachment []byte
	if deps.Renderer != nil {
		pdf, err := deps.Renderer.Render(document.KindOrderSummary, document.Data{
			FullName:     name,
			DNI:          dni,
			Quantity:     qty,
			UnitPrice:    deps.Pricing.UnitPrice,
			Surcharge:    surchargeFor(deps.Pricing, qty),
			Total:        total,
			Address:      address,
			DeliveryDate: delivery,
		})
		if err != nil {
			logger.Warn(ctx, "flows", "order.render.error", slog.Any("err", err))
		} else {
			attachment = pdf
		}
	}

	if deps.Mailer != nil {
		subject, html, err := mailer.RenderConfirmation(mailer.OrderSummary{
			FullName:     name,
			Quantity:     qty,
			Total:        total,
			Address:      address,
			DeliveryDate: delivery,
		})
		if err == nil {
			msg := mailer.Message{To: email, Subject: subject, HTML: html}
			if attachment != nil {
				msg.Attachments = []mailer.Attachment{{Name: "resumen_pedido.pdf", Data: attachment}}
			}
			err = deps.Mailer.Send(ctx, msg)
		}
		if err != nil {
			logger.Warn(ctx, "flows", "order.mail.error", slog.Any("err", err))
			_ = inv.Say(msgEmailSendFail)
		}
	}

	if deps.Archive != nil {
		ord := &storage.Order{
			Identity:     inv.Identity,
			DNI:          dni,
			FullName:     name,
			Quantity:     qty,
			Total:        total,
			Address:      address,
			Email:        email,
			DeliveryDate: delivery,
		}
		if err := deps.Archive.Save(ctx, ord); err != nil {
			logger.Warn(ctx, "flows", "order.archive.error", slog.Any("err", err))
		}
	}
}

func surchargeFor(p config.PricingConfig, qty int) float64 {
	if qty >= p.FreeDeliveryMin {
		return 0
	}
	return p.DeliverySurcharge
}

func farewellFlow(deps Deps) *flow.Builder {
	return flow.New(FlowFarewell, "finalizar", "gracias", "pedido listo").
		Run(msgFarewell, func(inv *flow.Invocation) (flow.Action, error) {
			lines := []string{msgContactHeader}
			if deps.Contact.Phone != "" {
				lines = append(lines, fmt.Sprintf("Contáctanos al %s 📱.", deps.Contact.Phone))
			}
			if deps.Contact.Email != "" {
				lines = append(lines, fmt.Sprintf("Correo: %s 📧.", deps.Contact.Email))
			}
			if err := inv.Say(lines...); err != nil {
				return flow.Action{}, err
			}
			return flow.End(), nil
		})
}
