package categorize

import (
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/Veraticus/gasto/internal/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Target is an internal category/subcategory pair.
type Target struct {
	Category    string
	Subcategory string
}

// DefaultBankMapping translates the category vocabulary used by Spanish bank
// exports into the internal vocabulary. Keys are folded with mappingKey: either
// "category|subcategory" or a bare "category".
var DefaultBankMapping = map[string]Target{
	// Food
	"alimentacion":                 {"Alimentación", "Supermercado"},
	"alimentacion|supermercados":   {"Alimentación", "Supermercado"},
	"supermercados y alimentacion": {"Alimentación", "Supermercado"},
	"restauracion":                 {"Restaurantes", ""},
	"ocio y viajes|restaurantes":   {"Restaurantes", ""},
	"bares y restaurantes":         {"Restaurantes", ""},
	"ocio y viajes|cafeterias":     {"Restaurantes", "Cafetería"},

	// Transport
	"transporte":                               {"Transporte", ""},
	"vehiculo y transporte|gasolina":           {"Transporte", "Combustible"},
	"vehiculo y transporte|combustible":        {"Transporte", "Combustible"},
	"vehiculo y transporte|parking":            {"Transporte", "Aparcamiento"},
	"vehiculo y transporte|peajes":             {"Transporte", "Peajes"},
	"vehiculo y transporte|transporte publico": {"Transporte", "Transporte público"},
	"vehiculo y transporte":                    {"Transporte", ""},

	// Home
	"hogar":                       {"Hogar", ""},
	"recibos|luz":                 {"Hogar", "Electricidad"},
	"recibos|electricidad":        {"Hogar", "Electricidad"},
	"recibos|gas":                 {"Hogar", "Gas"},
	"recibos|agua":                {"Hogar", "Agua"},
	"recibos|telefono e internet": {"Hogar", "Telefonía"},
	"recibos|telefonia":           {"Hogar", "Telefonía"},
	"recibos":                     {"Hogar", "Recibos"},
	"vivienda|alquiler":           {"Hogar", "Alquiler"},
	"vivienda|hipoteca":           {"Hogar", "Hipoteca"},
	"vivienda":                    {"Hogar", ""},

	// Health
	"salud":                    {"Salud", ""},
	"salud|farmacia":           {"Salud", "Farmacia"},
	"salud y cuidado personal": {"Salud", ""},

	// Leisure and shopping
	"ocio y viajes":               {"Ocio", ""},
	"ocio y viajes|viajes":        {"Ocio", "Viajes"},
	"ocio":                        {"Ocio", ""},
	"suscripciones":               {"Ocio", "Suscripciones"},
	"compras":                     {"Compras", ""},
	"compras|ropa y complementos": {"Compras", "Ropa"},
	"compras|tecnologia":          {"Compras", "Tecnología"},
	"compras online":              {"Compras", "Online"},
	"educacion":                   {"Educación", ""},

	// Money movements
	"nomina":                        {"Ingresos", "Nómina"},
	"ingresos|nomina":               {"Ingresos", "Nómina"},
	"ingresos|pension":              {"Ingresos", "Pensión"},
	"ingresos":                      {"Ingresos", ""},
	"transferencias":                {"Transferencias", "Transferencia bancaria"},
	"transferencias|bizum":          {"Transferencias", "Bizum"},
	"efectivo":                      {"Efectivo", "Retirada"},
	"cajeros":                       {"Efectivo", "Retirada"},
	"impuestos":                     {"Impuestos", ""},
	"impuestos y tasas":             {"Impuestos", ""},
	"comisiones":                    {"Banco", "Comisiones"},
	"comisiones y gastos bancarios": {"Banco", "Comisiones"},
	"seguros":                       {"Seguros", ""},
}

// BankMappingStrategy maps the bank-provided category through a lookup table.
// A "category|subcategory" entry takes precedence over a bare category entry.
type BankMappingStrategy struct {
	table map[string]Target
}

// NewBankMappingStrategy creates a mapping stage. A nil table selects
// DefaultBankMapping. Keys of a custom table are folded like the lookups.
func NewBankMappingStrategy(table map[string]Target) *BankMappingStrategy {
	if table == nil {
		table = DefaultBankMapping
	}
	return &BankMappingStrategy{table: LayerBankMapping(table)}
}

// LayerBankMapping folds the keys of each table and merges them in order, so
// an entry of a later table replaces any earlier entry whose key differs only
// in case, accents or spacing.
func LayerBankMapping(tables ...map[string]Target) map[string]Target {
	size := 0
	for _, table := range tables {
		size += len(table)
	}
	folded := make(map[string]Target, size)
	for _, table := range tables {
		// Sorted so colliding keys within one table resolve the same way
		// every run.
		for _, key := range slices.Sorted(maps.Keys(table)) {
			category, subcategory, _ := strings.Cut(key, "|")
			folded[mappingKey(category, subcategory)] = table[key]
		}
	}
	return folded
}

// Name implements Strategy.
func (s *BankMappingStrategy) Name() string { return BankMappingLabel }

// Attempt implements Strategy.
func (s *BankMappingStrategy) Attempt(txn model.Transaction) (model.Categorization, bool) {
	if strings.TrimSpace(txn.BankCategory) == "" {
		return model.Categorization{}, false
	}

	target, ok := s.table[mappingKey(txn.BankCategory, txn.BankSubcategory)]
	if !ok && strings.TrimSpace(txn.BankSubcategory) != "" {
		target, ok = s.table[mappingKey(txn.BankCategory, "")]
	}
	if !ok {
		return model.Categorization{}, false
	}

	return model.Categorization{
		Category:    target.Category,
		Subcategory: target.Subcategory,
		Confidence:  BankMappingConfidence,
		AppliedRule: BankMappingLabel,
		Strategy:    model.StrategyBankMapping,
	}, true
}

func mappingKey(category, subcategory string) string {
	key := foldAccents(model.NormalizeDescription(category))
	if sub := foldAccents(model.NormalizeDescription(subcategory)); sub != "" {
		key += "|" + sub
	}
	return key
}

// foldAccents strips combining marks so "Alimentación" and "ALIMENTACION" share
// a key. The transformer is stateful, so one is built per call.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
