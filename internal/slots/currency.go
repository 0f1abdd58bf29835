package slots

// supportedCurrencies is the fixed set the bot can transact in.
var supportedCurrencies = []string{"rub", "eur", "usd"}

// CurrencySlot is a dictionary slot over currency names with membership
// filters for the supported set.
type CurrencySlot struct {
	*DictionarySlot

	supported map[string]bool
}

func newCurrency(def Definition, _ []Slot, deps Deps) (Slot, error) {
	s := &CurrencySlot{
		DictionarySlot: newDictionarySlot(def, deps),
		supported:      make(map[string]bool, len(supportedCurrencies)),
	}
	for _, c := range supportedCurrencies {
		s.supported[c] = true
	}
	s.filters["supported_currency"] = func(v, _ string) bool { return s.supported[v] }
	s.filters["not_supported_currency"] = func(v, _ string) bool { return !s.supported[v] }
	return s, nil
}

// Supported reports whether the canonical currency is transactable.
func (s *CurrencySlot) Supported(currency string) bool {
	return s.supported[currency]
}
