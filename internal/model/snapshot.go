package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSnapshot возвращается для снимка неверного формата.
var ErrInvalidSnapshot = errors.New("invalid backup file format")

// Documents разбирает коллекции снимка. Коллекции, которых нет в Data (или со значением null),
// в результат не попадают. Любая некорректная запись, в том числе с полями не того типа,
// делает снимок недействительным целиком.
func (s *Snapshot) Documents() (map[Collection][]Document, error) {
	if s == nil || s.Data == nil {
		return nil, ErrInvalidSnapshot
	}

	out := make(map[Collection][]Document, len(Collections))
	for _, c := range Collections {
		raw, ok := s.Data[c.SnapshotKey()]
		if !ok || string(raw) == "null" {
			continue
		}

		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %s is not an array", ErrInvalidSnapshot, c.SnapshotKey())
		}

		seen := make(map[string]struct{}, len(items))
		docs := make([]Document, 0, len(items))
		for i, item := range items {
			d, err := DecodeDocument(item)
			if err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidSnapshot, c.SnapshotKey(), i, err)
			}
			if err := checkEntity(c, item); err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidSnapshot, c.SnapshotKey(), i, err)
			}
			if _, dup := seen[d.ID]; dup {
				return nil, fmt.Errorf("%w: %s has duplicate id %q", ErrInvalidSnapshot, c.SnapshotKey(), d.ID)
			}
			seen[d.ID] = struct{}{}
			docs = append(docs, d)
		}
		out[c] = docs
	}
	return out, nil
}

// checkEntity проверяет, что запись разбирается в сущность своей коллекции.
func checkEntity(c Collection, raw json.RawMessage) error {
	var v any
	switch c {
	case CollectionRooms:
		v = &Room{}
	case CollectionGuests:
		v = &Guest{}
	case CollectionMaintenance:
		v = &MaintenanceTicket{}
	case CollectionStaff:
		v = &Staff{}
	case CollectionTransactions:
		v = &Transaction{}
	case CollectionHistory:
		v = &BookingHistory{}
	default:
		return fmt.Errorf("unknown collection %q", c)
	}
	return json.Unmarshal(raw, v)
}

// SetDocuments записывает коллекцию в снимок в виде JSON-массива.
func (s *Snapshot) SetDocuments(c Collection, docs []Document) error {
	items := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.Body)
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}

	if s.Data == nil {
		s.Data = make(map[string]json.RawMessage, len(Collections))
	}
	s.Data[c.SnapshotKey()] = raw
	return nil
}
