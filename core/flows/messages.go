package flows

// Conversation copy. Kept together so wording changes never touch flow
// logic.
const (
	msgWelcomeGreeting = "👋 ¡Hola! Te saluda tu **Asesor de Ventas** especializado en **Bolsas de Desecho** 🗑️✨."
	msgWelcomeOffer    = "Ofrecemos paquetes de 100 unidades de bolsas negras (60x150cm) a solo *S/15* cada uno."
	msgWelcomeTerms    = "📦 **CONDICIONES DE VENTA Y ENTREGA:**\n" +
		"✅ Las entregas se realizan únicamente los **sábados y domingos**.\n" +
		"✅ Si solo deseas *un paquete*, se aplicará un recargo de *S/7* por envío a Lima.\n" +
		"✅ Para pedidos de *3 paquetes o más*, el envío es **sin recargo**."
	msgWelcomeClose = "¡Simplifica tu compra y recibe tus bolsas en casa! 🚚"

	msgTermsNotice = "Por favor, revisa nuestros *Términos y Condiciones (TyC)* adjuntos para continuar con el servicio. " +
		"Una vez que los hayas leído, por favor, responde **Sí** a la siguiente pregunta si estás de acuerdo."
	msgAgreementPrompt = "📌 **¿Estás de acuerdo con el servicio?** Responde **Sí** para continuar 🙌."
	msgTermsDeclined   = "Entendido. Si no aceptas los términos, no podemos continuar con el servicio de compra. ¡Gracias por tu tiempo!"

	msgEngagePrompt = "🚀 ¿Deseas realizar tu pedido de bolsas de desecho de forma rápida y segura con nosotros? " +
		"Responde **Sí** para continuar o **No** si no deseas ordenar ahora. (Tiempo de espera: 60 segundos)"
	msgEngageTimeout  = "⌛ ¡Parece que no recibimos tu respuesta! Si cambias de opinión, ¡siempre puedes escribir \"Hola\" para regresar y hacer tu pedido!"
	msgEngageDeclined = "Entendido. No hay problema. ¡Gracias por tu tiempo!"
	msgYesNoFallback  = "❌ No entendí tu respuesta. Por favor, responde **Sí** o **No**."

	msgDNIPrompt       = "Por favor, ingresa tu número de DNI para validar tu identidad:"
	msgDNIBadFormat    = "⚠️ Formato de DNI inválido. Por favor, ingresa 8 dígitos numéricos."
	msgCodePrompt      = "Por favor, ingresa el *código de verificación* de tu DNI (el último dígito en la parte superior derecha de tu DNI):"
	msgCodeBadFormat   = "⚠️ Formato de código de verificación inválido. Por favor, ingresa un *único dígito numérico*."
	msgCodeMismatch    = "❌ El código de verificación no coincide. Por favor, verifica tu número de DNI y el código e inténtalo de nuevo."
	msgDNINotFound     = "❌ Lo siento, no pudimos validar tu DNI o el código de verificación no está disponible. Por favor, verifica el número e inténtalo de nuevo."
	msgVerifyTechError = "⚠️ Ocurrió un error técnico al validar tu DNI. Por favor, inténtalo más tarde."

	msgQuantityPrompt = "¿Cuántos paquetes de bolsas deseas ordenar? (Cada paquete contiene 100 unidades y cuesta S/15. " +
		"Pedido mínimo para envío sin recargo es de 3 paquetes)."
	msgQuantityInvalid = "❌ Por favor, ingresa un número válido y mayor a cero."

	msgAddressPrompt   = "Por favor, ingresa tu dirección completa para la entrega (calle, número, distrito, referencia):"
	msgAddressReceived = "¡Dirección recibida! Un momento, por favor."

	msgProcessing     = "Un momento, por favor, estoy procesando tu pedido..."
	msgConfirmPrompt  = "Responde **Sí** para confirmar o **No** para modificar tu pedido."
	msgOrderConfirmed = "¡Excelente! Tu pedido ha sido confirmado. Un asesor se pondrá en contacto contigo para coordinar los detalles finales de la entrega."
	msgOrderDeclined  = "Entendido. Puedes reiniciar el proceso de pedido escribiendo \"Hola\"."

	msgEmailPrompt = "Para enviarte la confirmación de tu pedido, por favor, ingresa tu dirección de correo electrónico:"
	msgEmailBad    = "❌ Formato de correo electrónico inválido. Por favor, ingresa una dirección de correo válida (ej. tu@ejemplo.com)."
	msgEmailSending  = "¡Correo recibido! Enviando la confirmación de tu pedido..."
	msgEmailSendFail = "⚠️ No pudimos enviar el correo de confirmación, pero tu pedido sigue registrado."
	msgOrderComplete = "🎉 ¡Pedido y correo de confirmación enviados! Gracias por tu compra."
	msgNotConfirmed  = "Parece que hubo un problema con la confirmación de tu pedido. Por favor, intenta de nuevo escribiendo \"Hola\"."

	msgFarewell = "¡Listo! 🎉 Tu pedido está en proceso. En breve nos pondremos en contacto contigo para coordinar " +
		"los detalles finales de la entrega. ¡Gracias por tu compra! 🛒"
	msgContactHeader = "📌 **¿Tienes dudas?**"
)
