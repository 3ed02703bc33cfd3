package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// PriceEntry maps one provider price id to the credits a single unit grants.
type PriceEntry struct {
	PriceID string `mapstructure:"price_id" json:"price_id"`
	SKU     string `mapstructure:"sku" json:"sku"`
	Name    string `mapstructure:"name" json:"name"`
	Credits int64  `mapstructure:"credits" json:"credits"`
}

type PriceTable struct {
	byPriceID map[string]PriceEntry
}

func NewPriceTable(entries ...PriceEntry) (*PriceTable, error) {
	t := &PriceTable{byPriceID: make(map[string]PriceEntry, len(entries))}
	for _, e := range entries {
		if e.PriceID == "" {
			return nil, fmt.Errorf("price table entry %q has no price_id", e.SKU)
		}
		if e.Credits <= 0 {
			return nil, fmt.Errorf("price %s must grant a positive number of credits, got %d", e.PriceID, e.Credits)
		}
		if _, dup := t.byPriceID[e.PriceID]; dup {
			return nil, fmt.Errorf("price %s listed twice", e.PriceID)
		}
		if e.SKU == "" {
			e.SKU = e.PriceID
		}
		t.byPriceID[e.PriceID] = e
	}
	return t, nil
}

// LoadPriceTable reads a YAML (or JSON/TOML) file shaped like
//
//	prices:
//	  - price_id: price_123
//	    sku: 3-credit-bundle
//	    credits: 3
func LoadPriceTable(path string) (*PriceTable, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read price table: %w", err)
	}

	var file struct {
		Prices []PriceEntry `mapstructure:"prices"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode price table: %w", err)
	}
	if len(file.Prices) == 0 {
		return nil, fmt.Errorf("price table %s is empty", path)
	}

	return NewPriceTable(file.Prices...)
}

func (t *PriceTable) Lookup(priceID string) (PriceEntry, bool) {
	e, ok := t.byPriceID[priceID]
	return e, ok
}

func (t *PriceTable) Entries() []PriceEntry {
	out := make([]PriceEntry, 0, len(t.byPriceID))
	for _, e := range t.byPriceID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Credits < out[j].Credits })
	return out
}
