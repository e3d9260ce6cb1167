package rag

import "fmt"

// SystemPersona is the instruction every generator sends as the system message.
const SystemPersona = "Eres un asistente médico especializado. Responde preguntas médicas basándote en la información proporcionada. Si no tienes suficiente información, indica que necesitas más contexto."

// PingPrompt is the trivial prompt used by generator liveness probes.
const PingPrompt = "Test connection"

// Canned answers returned instead of errors at query time.
const (
	AnswerNoInformation     = "No encontré información relevante en los documentos disponibles para responder tu pregunta."
	AnswerGenerationFailed  = "Lo siento, no pude generar una respuesta en este momento. Por favor, intenta de nuevo."
	AnswerSearchUnavailable = "Lo siento, no pude consultar los documentos en este momento. Por favor, intenta de nuevo."
	AnswerSearchFailed      = "Lo siento, ocurrió un error al procesar tu pregunta."
)

// BuildPrompt renders the user message for question. An empty context yields a
// question-only prompt.
func BuildPrompt(question, context string) string {
	if context == "" {
		return fmt.Sprintf("Pregunta médica: %s\n\n"+
			"Por favor, proporciona una respuesta médica profesional. "+
			"Si no tienes suficiente información para responder completamente, indica qué información adicional necesitas.",
			question)
	}
	return fmt.Sprintf("Contexto médico relevante:\n%s\n\nPregunta: %s\n\n"+
		"Por favor, responde la pregunta basándote en el contexto proporcionado. "+
		"Si el contexto no contiene información suficiente para responder completamente, indica qué información adicional necesitas.",
		context, question)
}
