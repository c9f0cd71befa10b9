package rules

import "github.com/Veraticus/gasto/internal/model"

// Priority tiers. Lower values are evaluated first.
const (
	// UserPriority is the default for rules created explicitly by the user.
	UserPriority = 1
	// LearnedPriority is used for rules synthesized from user corrections.
	LearnedPriority = 5
	// SeedPriority is used for the predefined merchant rules.
	SeedPriority = 10
	// GenericSeedPriority is used for broad predefined rules that should lose
	// to any merchant-specific rule.
	GenericSeedPriority = 20
)

func seed(id, name, pattern string, kind model.MatchKind, category, subcategory string, priority int) model.Rule {
	return model.Rule{
		ID:          "seed-" + id,
		Name:        name,
		Pattern:     pattern,
		MatchKind:   kind,
		Category:    category,
		Subcategory: subcategory,
		Priority:    priority,
		Active:      true,
		Source:      model.SourceSeed,
	}
}

// DefaultRules returns the predefined rule set loaded when no custom list is given.
func DefaultRules() []model.Rule {
	payroll := seed("nomina", "Nómina", `\bn[oó]mina\b|\bsalario\b|\bpayroll\b`, model.MatchRegex, "Ingresos", "Nómina", GenericSeedPriority)
	payroll.Direction = model.DirectionIncome

	pension := seed("pension", "Pensión", `\bpensi[oó]n\b`, model.MatchRegex, "Ingresos", "Pensión", GenericSeedPriority)
	pension.Direction = model.DirectionIncome

	return []model.Rule{
		// Supermarkets
		seed("mercadona", "Mercadona", "mercadona", model.MatchContains, "Alimentación", "Supermercado", SeedPriority),
		seed("carrefour", "Carrefour", "carrefour", model.MatchContains, "Alimentación", "Supermercado", SeedPriority),
		seed("lidl", "Lidl", "lidl", model.MatchContains, "Alimentación", "Supermercado", SeedPriority),
		seed("aldi", "Aldi", `\baldi\b`, model.MatchRegex, "Alimentación", "Supermercado", SeedPriority),
		seed("dia", "Dia", `\bdia\b`, model.MatchRegex, "Alimentación", "Supermercado", SeedPriority),
		seed("eroski", "Eroski", "eroski", model.MatchContains, "Alimentación", "Supermercado", SeedPriority),
		seed("alcampo", "Alcampo", "alcampo", model.MatchContains, "Alimentación", "Supermercado", SeedPriority),
		seed("consum", "Consum", `\bconsum\b`, model.MatchRegex, "Alimentación", "Supermercado", SeedPriority),

		// Transport
		seed("repsol", "Repsol", "repsol", model.MatchContains, "Transporte", "Combustible", SeedPriority),
		seed("cepsa", "Cepsa", "cepsa", model.MatchContains, "Transporte", "Combustible", SeedPriority),
		seed("galp", "Galp", `\bgalp\b`, model.MatchRegex, "Transporte", "Combustible", SeedPriority),
		seed("renfe", "Renfe", "renfe", model.MatchContains, "Transporte", "Tren", SeedPriority),
		seed("metro", "Metro", `\bmetro(valencia| de madrid| bilbao)?\b`, model.MatchRegex, "Transporte", "Transporte público", SeedPriority),
		seed("cabify", "Cabify", "cabify", model.MatchContains, "Transporte", "Taxi", SeedPriority),
		seed("uber", "Uber", `\buber\b`, model.MatchRegex, "Transporte", "Taxi", SeedPriority),

		// Home and utilities
		seed("iberdrola", "Iberdrola", "iberdrola", model.MatchContains, "Hogar", "Electricidad", SeedPriority),
		seed("endesa", "Endesa", "endesa", model.MatchContains, "Hogar", "Electricidad", SeedPriority),
		seed("naturgy", "Naturgy", "naturgy", model.MatchContains, "Hogar", "Gas", SeedPriority),
		seed("movistar", "Movistar", "movistar", model.MatchContains, "Hogar", "Telefonía", SeedPriority),
		seed("vodafone", "Vodafone", "vodafone", model.MatchContains, "Hogar", "Telefonía", SeedPriority),
		seed("orange", "Orange", `\borange\b`, model.MatchRegex, "Hogar", "Telefonía", SeedPriority),

		// Leisure and shopping
		seed("netflix", "Netflix", "netflix", model.MatchContains, "Ocio", "Suscripciones", SeedPriority),
		seed("spotify", "Spotify", "spotify", model.MatchContains, "Ocio", "Suscripciones", SeedPriority),
		seed("amazon", "Amazon", `\bamazon\b|\bamzn\b`, model.MatchRegex, "Compras", "Online", SeedPriority),
		seed("zara", "Zara", `\bzara\b`, model.MatchRegex, "Compras", "Ropa", SeedPriority),
		seed("farmacia", "Farmacia", "farmacia", model.MatchStartsWith, "Salud", "Farmacia", SeedPriority),

		// Banking
		seed("comision", "Comisión bancaria", `\bcomisi[oó]n\b`, model.MatchRegex, "Banco", "Comisiones", GenericSeedPriority),
		seed("cajero", "Retirada de efectivo", `\b(cajero|reintegro)\b`, model.MatchRegex, "Efectivo", "Retirada", GenericSeedPriority),
		seed("bizum", "Bizum", "bizum", model.MatchContains, "Transferencias", "Bizum", GenericSeedPriority),
		seed("transferencia", "Transferencia", "transferencia", model.MatchContains, "Transferencias", "Transferencia bancaria", GenericSeedPriority),

		// Income
		payroll,
		pension,
	}
}
