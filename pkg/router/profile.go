package router

// Profile describes a routable agent: its registry key, the label shown
// to the arbitration model, keyword triggers for the rule tier and
// curated example utterances for the semantic tier.
type Profile struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Examples    []string `json:"examples"`
}

// DefaultProfiles returns the built-in agent profiles. Order matters:
// rule-tier ties resolve to the earliest registered profile.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Key:   "onboarding",
			Label: "OnboardingAgent",
			Keywords: []string{
				"registrarse", "crear cuenta", "registro", "nueva cuenta",
				"empezar", "comenzar", "onboarding", "como uso luca",
				"nuevo usuario", "primera vez", "signup", "sign up",
			},
			Description: "Agente para registro y onboarding de nuevos usuarios no autenticados",
			Examples: []string{
				"Quiero crear una cuenta",
				"¿Cómo me registro?",
				"Soy nuevo en Luca",
				"¿Cómo empiezo a usar Luca?",
			},
		},
		{
			Key:   "dte",
			Label: "DTEAgent",
			Keywords: []string{
				"factura", "boleta", "nota de credito", "nota de debito",
				"dte", "documento", "electronico", "emision", "folio",
				"timbre", "xml", "pdf", "mis documentos", "ventas", "compras",
			},
			Description: "Especializado en Documentos Tributarios Electrónicos, facturas, boletas y notas",
			Examples: []string{
				"Mostrar mis facturas del mes",
				"¿Cómo emito una boleta electrónica?",
				"Ver documentos de enero 2024",
				"¿Qué es una nota de crédito?",
			},
		},
		{
			Key:   "general",
			Label: "GeneralAgent",
			Keywords: []string{
				"certificado digital", "clave tributaria", "portal", "misii", "sii",
				"tramite", "solicitud", "peticion", "fiscalizacion",
				"mandatario", "representante", "codigo provisorio", "habilitacion",
				"avaluo", "contribucion", "termino de giro", "actualizacion informacion",
				"f29", "f3323", "impuesto", "renta", "iva", "ppm",
				"tributacion", "tributario", "declaracion", "mensual", "anual", "formulario",
				"empresa", "compañia", "socios", "actividad economica", "representantes",
				"mi empresa", "que sabes de mi empresa", "informacion empresa",
				"hola", "gracias", "ayuda", "que puedes hacer",
				"contabilidad", "balance", "estado", "general", "saludo",
			},
			Description: "Agente general para SII, tributación, información de empresa, contabilidad y consultas generales",
			Examples: []string{
				"¿Qué sabes de mi empresa?",
				"¿Cómo declaro F29?",
				"¿Cómo obtengo certificado digital?",
				"Hola, ¿cómo estás?",
				"¿Cuáles son mis socios?",
				"¿Qué actividades económicas tengo?",
				"¿Cómo calculo el IVA mensual?",
			},
		},
	}
}
