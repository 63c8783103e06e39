package assistant

import "time"

// Role identifies the author of a conversation message.
type Role string

// Valid message roles. The provider's wire protocol knows only these two.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is a single finalized conversation turn. Content holds plain text
// only; tool-call requests and results are ephemeral within a turn and are
// never stored as messages.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Canned assistant replies. The assistant speaks Spanish to match the
// back-office audience.
const (
	// WelcomeText opens every fresh conversation.
	WelcomeText = "¡Hola! Soy tu asistente de Venti. Puedo ayudarte con información sobre tus ventas, órdenes y productos. ¿En qué puedo ayudarte hoy?"

	// ApologyText is appended when a turn fails outside the tool layer
	// (model call failure, network failure, malformed reply).
	ApologyText = "Lo siento, ocurrió un error al procesar tu solicitud. ¿Podrías intentar de nuevo?"

	// FallbackText covers a model reply with no candidates or no text parts.
	FallbackText = "Lo siento, no pude generar una respuesta. ¿Podrías reformular tu pregunta?"

	// ExhaustedText is returned when the model keeps requesting tools past
	// the round bound.
	ExhaustedText = "No pude completar la consulta con las herramientas disponibles. ¿Podrías simplificar tu pregunta?"
)

// WelcomeMessage returns the model-authored message that seeds a fresh log.
func WelcomeMessage(now time.Time) Message {
	return Message{Role: RoleModel, Content: WelcomeText, Timestamp: now}
}
