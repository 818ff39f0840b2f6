package generate

import (
	"fmt"
	"strings"

	"github.com/hyperjump/historias/internal/models"
)

// Agent is a role/goal/backstory persona sent as the system instruction.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
}

// System renders the persona as a system instruction.
func (a Agent) System() string {
	return fmt.Sprintf("Rol: %s\nObjetivo: %s\nContexto: %s", a.Role, a.Goal, a.Backstory)
}

var visionAgent = Agent{
	Role: "Agente de Análisis Visual",
	Goal: "Analizar imágenes y proporcionar descripciones detalladas y precisas del contenido visual para informar la creación de historias",
	Backstory: "Eres un experto en análisis visual con una capacidad excepcional para interpretar imágenes. " +
		"Examinas cada imagen y describes no solo los elementos obvios, sino también el contexto, las emociones, " +
		"los colores y la composición. Tu análisis es la base para que otros agentes creen contenido que conecte con la imagen.",
}

var platformAgents = map[models.Platform]Agent{
	models.PlatformFacebook: {
		Role: "Especialista en Contenido para Facebook",
		Goal: "Crear contenido optimizado para Facebook que genere engagement y sea apropiado para la plataforma",
		Backstory: "Eres un experto en marketing de contenido para Facebook. Usas hooks atractivos, creas contenido " +
			"que invita a la conversación, usas emojis con criterio y estructuras posts que funcionan bien en el feed.",
	},
	models.PlatformLinkedIn: {
		Role: "Especialista en Contenido para LinkedIn",
		Goal: "Crear contenido profesional y de valor para LinkedIn que posicione al usuario como experto en su área",
		Backstory: "Eres un estratega de contenido profesional especializado en LinkedIn. Combinas valor profesional con " +
			"storytelling personal, usas hashtags relevantes y mantienes un tono profesional pero accesible.",
	},
	models.PlatformInstagram: {
		Role: "Especialista en Contenido para Instagram",
		Goal: "Crear contenido visual y atractivo optimizado para Instagram que maximice el engagement",
		Backstory: "Eres un creador de contenido especializado en Instagram. Entiendes la importancia de los primeros " +
			"segundos, usas hashtags estratégicamente y escribes captions que complementan las imágenes.",
	},
	models.PlatformTwitter: {
		Role: "Especialista en Contenido para Twitter/X",
		Goal: "Crear contenido conciso y impactante optimizado para Twitter que genere conversación y retweets",
		Backstory: "Eres un experto en comunicación concisa. Transmites ideas poderosas en espacios limitados, " +
			"sabes crear hilos que mantienen la atención y entiendes el ritmo de Twitter.",
	},
}

// platformChecklist lists what each platform's post must include.
var platformChecklist = map[models.Platform][]string{
	models.PlatformFacebook: {
		"Un hook atractivo que capture la atención en los primeros segundos",
		"Contenido principal dividido en párrafos cortos y fáciles de leer",
		"Una llamada a la acción clara y específica",
		"Uso estratégico de emojis",
		"El texto completo optimizado para Facebook",
	},
	models.PlatformLinkedIn: {
		"Un hook profesional que genere curiosidad",
		"Contenido que aporte valor profesional o insights",
		"Storytelling personal o profesional relevante",
		"Una llamada a la acción que fomente networking o conversación profesional",
		"Hashtags relevantes y estratégicos",
	},
	models.PlatformInstagram: {
		"Un caption que complemente la imagen",
		"Hook visual que funcione en los primeros segundos",
		"Contenido estructurado con saltos de línea",
		"Emojis estratégicamente ubicados",
		"Hashtags relevantes (mezcla de grandes y nicho)",
		"Llamada a la acción que fomente engagement",
	},
	models.PlatformTwitter: {
		"Un tweet principal impactante y conciso",
		"Si es necesario, un hilo de 2-3 tweets adicionales",
		"Máximo 2-3 hashtags",
		"Llamada a la acción clara y directa",
	},
}

const contentShape = `{
  "title": "Título del post",
  "hook": "Gancho inicial",
  "body": ["párrafo 1", "párrafo 2", "párrafo 3"],
  "call_to_action": "Llamada a la acción",
  "hashtags": ["#hashtag1", "#hashtag2"],
  "full_text": "Texto completo del post"
}`

const twitterShape = `{
  "title": "Título del contenido",
  "main_tweet": "Tweet principal",
  "thread": ["tweet 2", "tweet 3"],
  "hashtags": ["#hashtag1", "#hashtag2"],
  "call_to_action": "Llamada a la acción",
  "full_text": "Contenido completo para Twitter"
}`

func analyzePrompt(caption string) string {
	return "Descripción básica de la imagen: " + caption + `

Expande esa descripción con detalles sobre:
- Elementos visuales principales
- Colores dominantes
- Emociones que transmite
- Contexto o situación mostrada
- Posibles interpretaciones o mensajes

Proporciona una descripción rica que sirva como base para crear contenido.`
}

func contentPrompt(platform models.Platform, description string, req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Crea contenido optimizado para %s basado en:\n\n", platformLabel(platform))
	fmt.Fprintf(&b, "Descripción de la imagen: %s\n", description)
	fmt.Fprintf(&b, "Tono deseado: %s\n", orDefault(req.Tone, "profesional"))
	fmt.Fprintf(&b, "Especificaciones adicionales: %s\n", orDefault(req.AdditionalSpecs, "Ninguna"))
	if req.Brief != "" {
		fmt.Fprintf(&b, "\nDocumento de referencia del usuario:\n%s\n", req.Brief)
	}
	b.WriteString("\nEl post debe incluir:\n")
	for i, item := range platformChecklist[platform] {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	shape := contentShape
	if platform == models.PlatformTwitter {
		shape = twitterShape
	}
	fmt.Fprintf(&b, "\nResponde únicamente con un objeto JSON con la estructura:\n%s\n", shape)
	return b.String()
}

func platformLabel(p models.Platform) string {
	switch p {
	case models.PlatformFacebook:
		return "Facebook"
	case models.PlatformLinkedIn:
		return "LinkedIn"
	case models.PlatformInstagram:
		return "Instagram"
	case models.PlatformTwitter:
		return "Twitter/X"
	}
	return string(p)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
