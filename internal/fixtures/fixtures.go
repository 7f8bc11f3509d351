// Package fixtures содержит демонстрационный набор данных для режима демо.
package fixtures

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/mmeshcher/staysync/internal/model"
)

//go:embed demo.json
var demoJSON []byte

// Set — набор записей для заполнения пустых коллекций.
type Set map[model.Collection][]model.Document

// Documents возвращает копию записей коллекции.
func (s Set) Documents(c model.Collection) []model.Document {
	docs := s[c]
	out := make([]model.Document, len(docs))
	copy(out, docs)
	return out
}

// Demo разбирает встроенный демонстрационный снимок.
func Demo() (Set, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(demoJSON, &snap); err != nil {
		return nil, fmt.Errorf("decode demo fixtures: %w", err)
	}

	docs, err := snap.Documents()
	if err != nil {
		return nil, fmt.Errorf("demo fixtures: %w", err)
	}
	return Set(docs), nil
}
