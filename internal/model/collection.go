package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoDocumentID возвращается для JSON-объекта без ключа "id".
var ErrNoDocumentID = errors.New("document has no id")

// Collection — имя коллекции сущностей.
type Collection string

const (
	CollectionRooms        Collection = "rooms"
	CollectionGuests       Collection = "guests"
	CollectionMaintenance  Collection = "maintenance"
	CollectionStaff        Collection = "staff"
	CollectionTransactions Collection = "transactions"
	CollectionHistory      Collection = "history"
)

// Collections перечисляет все коллекции в порядке снимка.
var Collections = []Collection{
	CollectionRooms,
	CollectionGuests,
	CollectionMaintenance,
	CollectionStaff,
	CollectionTransactions,
	CollectionHistory,
}

// SnapshotKey возвращает ключ коллекции в снимке базы.
func (c Collection) SnapshotKey() string {
	return "staysync_" + string(c)
}

// Valid сообщает, известна ли коллекция.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCollection проверяет имя коллекции.
func ParseCollection(s string) (Collection, error) {
	c := Collection(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown collection %q", s)
	}
	return c, nil
}

// SnapshotVersion — версия формата экспорта.
const SnapshotVersion = "1.0"

// Snapshot — полный экспорт локальной базы одним JSON-документом.
// Отсутствующий ключ в Data означает, что коллекцию восстанавливать не нужно.
type Snapshot struct {
	Version   string                     `json:"version"`
	Timestamp string                     `json:"timestamp"`
	Data      map[string]json.RawMessage `json:"data"`
}

// DataSource определяет источник истины для чтения.
type DataSource string

const (
	DataSourceLocal DataSource = "Local"
	DataSourceCloud DataSource = "Cloud"
)

// RemoteParams описывает подключение к удалённому хранилищу документов.
type RemoteParams struct {
	Driver string `json:"driver"`
	URI    string `json:"uri"`
}

// Settings — запись настроек, определяющая маршрутизацию чтения и записи.
type Settings struct {
	DataSource DataSource   `json:"dataSource"`
	DemoMode   bool         `json:"demoMode"`
	Remote     RemoteParams `json:"remote"`
}

// DefaultSettings возвращает настройки первого запуска.
func DefaultSettings() Settings {
	return Settings{
		DataSource: DataSourceLocal,
		DemoMode:   true,
	}
}

// Keyed реализуется сущностями, у которых есть ключ.
type Keyed interface {
	GetID() string
}

// NewDocument кодирует сущность в документ коллекции.
func NewDocument(v Keyed) (Document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s: %w", v.GetID(), err)
	}
	return Document{ID: v.GetID(), Body: body}, nil
}

// DecodeDocument извлекает ключ из JSON-объекта. Объект обязан содержать непустую строку "id".
func DecodeDocument(raw json.RawMessage) (Document, error) {
	var head struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if head.ID == nil || *head.ID == "" {
		return Document{}, ErrNoDocumentID
	}
	return Document{ID: *head.ID, Body: raw}, nil
}
