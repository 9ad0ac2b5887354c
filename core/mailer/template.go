package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// OrderSummary is the data rendered into the confirmation e-mail.
type OrderSummary struct {
	FullName     string
	Quantity     int
	Total        float64
	Address      string
	DeliveryDate string
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>¡Gracias por tu pedido, {{.FullName}}!</h2>
    <p>Hemos registrado tu compra de bolsas de plástico:</p>
    <table style="border-collapse: collapse;">
      <tr>
        <td style="padding: 4px 12px 4px 0;"><strong>Cantidad:</strong></td>
        <td>{{.Quantity}} paquete(s)</td>
      </tr>
      <tr>
        <td style="padding: 4px 12px 4px 0;"><strong>Total:</strong></td>
        <td>S/{{printf "%.2f" .Total}}</td>
      </tr>
      <tr>
        <td style="padding: 4px 12px 4px 0;"><strong>Dirección de entrega:</strong></td>
        <td>{{.Address}}</td>
      </tr>
      <tr>
        <td style="padding: 4px 12px 4px 0;"><strong>Fecha de entrega:</strong></td>
        <td>{{.DeliveryDate}}</td>
      </tr>
    </table>
    <p>Adjuntamos el resumen de tu pedido. ¡Hasta pronto!</p>
  </body>
</html>`))

// RenderConfirmation produces the subject and HTML body for an order
// confirmation.
func RenderConfirmation(sum OrderSummary) (subject, html string, err error) {
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, sum); err != nil {
		return "", "", fmt.Errorf("mailer: render confirmation: %w", err)
	}
	return "Confirmación de tu pedido", buf.String(), nil
}
