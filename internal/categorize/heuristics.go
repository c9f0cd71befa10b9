package categorize

import (
	"strings"
	"unicode"

	"github.com/Veraticus/gasto/internal/model"
)

// Heuristic is a built-in keyword group. A keyword matches when it appears as a
// whole word (or word sequence) in the normalized, accent-folded description.
type Heuristic struct {
	Name        string
	Category    string
	Subcategory string
	Keywords    []string
	Direction   model.Direction
}

// DefaultHeuristics are the hard-coded fallbacks. They are not user editable and
// only run when no stored rule and no bank mapping applied.
var DefaultHeuristics = []Heuristic{
	{
		Name:        "Supermarket",
		Category:    "Alimentación",
		Subcategory: "Supermercado",
		Keywords:    []string{"supermercado", "supermercados", "hipermercado", "mercadona", "carrefour", "lidl", "aldi", "eroski", "alcampo", "hipercor", "ahorramas", "bonpreu", "caprabo", "spar", "froiz", "gadis"},
	},
	{
		Name:        "Fuel station",
		Category:    "Transporte",
		Subcategory: "Combustible",
		Keywords:    []string{"gasolinera", "estacion de servicio", "estacion servicio", "e.s.", "carburante", "repsol", "cepsa", "galp", "shell", "bp", "petronor", "ballenoil", "plenoil"},
	},
	{
		Name:        "Peer-to-peer transfer",
		Category:    "Transferencias",
		Subcategory: "Bizum",
		Keywords:    []string{"bizum"},
	},
	{
		Name:        "Payroll",
		Category:    "Ingresos",
		Subcategory: "Nómina",
		Keywords:    []string{"nomina", "salario", "payroll", "haberes"},
		Direction:   model.DirectionIncome,
	},
	{
		Name:        "Cash withdrawal",
		Category:    "Efectivo",
		Subcategory: "Retirada",
		Keywords:    []string{"cajero", "reintegro", "retirada efectivo", "disposicion efectivo", "atm"},
	},
}

// HeuristicStrategy tries each heuristic in order.
type HeuristicStrategy struct {
	heuristics []Heuristic
}

// NewHeuristicStrategy creates a heuristic stage. A nil list selects
// DefaultHeuristics.
func NewHeuristicStrategy(heuristics []Heuristic) *HeuristicStrategy {
	if heuristics == nil {
		heuristics = DefaultHeuristics
	}
	folded := make([]Heuristic, len(heuristics))
	for i, h := range heuristics {
		h.Keywords = foldKeywords(h.Keywords)
		folded[i] = h
	}
	return &HeuristicStrategy{heuristics: folded}
}

// Name implements Strategy.
func (s *HeuristicStrategy) Name() string { return "heuristics" }

// Attempt implements Strategy.
func (s *HeuristicStrategy) Attempt(txn model.Transaction) (model.Categorization, bool) {
	padded := " " + wordsOnly(foldAccents(txn.NormalizedDescription())) + " "
	if strings.TrimSpace(padded) == "" {
		return model.Categorization{}, false
	}

	direction := txn.Direction()
	for _, h := range s.heuristics {
		if h.Direction != model.DirectionAny && h.Direction != direction {
			continue
		}
		for _, keyword := range h.Keywords {
			if strings.Contains(padded, " "+keyword+" ") {
				return model.Categorization{
					Category:    h.Category,
					Subcategory: h.Subcategory,
					Confidence:  HeuristicConfidence,
					AppliedRule: HeuristicPrefix + h.Name,
					Strategy:    model.StrategyHeuristic,
				}, true
			}
		}
	}
	return model.Categorization{}, false
}

func foldKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = wordsOnly(foldAccents(model.NormalizeDescription(k))); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// wordsOnly replaces punctuation with spaces and collapses the result, so that
// "COMPRA*LIDL" and "e.s." split into words the same way on both sides.
func wordsOnly(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}
