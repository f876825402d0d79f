package model

import (
	"strings"
	"time"
)

// KindTable marks a layout item that can be booked. Any other kind is a
// decoration (bar, stage, pillar) and is skipped by booking and summaries.
const KindTable = "table"

// Layout is the floor plan of one seating area of one event. Tables are
// embedded in Items, which makes the layout document the unit of
// transactional mutation.
//
// Fields:
//  ID        – document id, unique within the event.
//  Name      – display name of the area ("Main floor", "Terrace").
//  Width     – canvas width.
//  Height    – canvas height.
//  Items     – tables and decorations in drawing order.
//  UpdatedAt – last write through the reservation engine.
type Layout struct {
	ID        string    `json:"id" bson:"id"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	Width     float64   `json:"width" bson:"width"`
	Height    float64   `json:"height" bson:"height"`
	Items     []Table   `json:"items" bson:"items"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// FindTable returns the index of the table item named name. Matching is
// exact; decorations never match.
func (l *Layout) FindTable(name string) (int, bool) {
	for i := range l.Items {
		if l.Items[i].IsTable() && l.Items[i].TableName == name {
			return i, true
		}
	}
	return -1, false
}

// Tables returns the table items of the layout.
func (l *Layout) Tables() []Table {
	out := make([]Table, 0, len(l.Items))
	for _, it := range l.Items {
		if it.IsTable() {
			out = append(out, it)
		}
	}
	return out
}

// DuplicateTableName reports the first tableName used by more than one
// table item, if any.
func (l *Layout) DuplicateTableName() (string, bool) {
	seen := make(map[string]struct{}, len(l.Items))
	for _, it := range l.Items {
		if !it.IsTable() {
			continue
		}
		if _, ok := seen[it.TableName]; ok {
			return it.TableName, true
		}
		seen[it.TableName] = struct{}{}
	}
	return "", false
}

// IsTable reports whether the item is a bookable table. Items stored
// without a kind are treated as tables.
func (t *Table) IsTable() bool {
	return t.Kind == "" || strings.EqualFold(t.Kind, KindTable)
}
