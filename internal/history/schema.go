// Package history defines the canonical shape of a history record and the
// flattening of a hierarchical report into rows.
//
// A report is a list of issue cards; each card carries free text and an
// ordered list of details; each detail carries free text and an ordered list
// of action texts. The store persists one flat row per leaf node, keyed by
// (save_id, card_index, detail_index, action_index).
package history

import "encoding/json"

// FieldNames is the canonical, ordered field list for a history row. The
// SQLite schema, the snapshot file format, and the CSV export all derive
// their column set from this list.
var FieldNames = []string{
	"save_id",
	"saved_at",
	"link_up",
	"func_location",
	"date_field",
	"shift",
	"user",
	"card_index",
	"issue",
	"detail_index",
	"detail",
	"action_index",
	"action",
}

// Row is one recorded observation in a report. All fields are strings; index
// fields hold 1-based decimal positions, or "" when that level is absent.
//
// The tuple (SaveID, CardIndex, DetailIndex, ActionIndex) is the merge key:
// two rows with an equal key are the same logical fact and collapse to one
// stored row no matter how many times they are offered for insertion.
type Row struct {
	SaveID       string `json:"save_id"`
	SavedAt      string `json:"saved_at"`
	LinkUp       string `json:"link_up"`
	FuncLocation string `json:"func_location"`
	DateField    string `json:"date_field"`
	Shift        string `json:"shift"`
	User         string `json:"user"`
	CardIndex    string `json:"card_index"`
	Issue        string `json:"issue"`
	DetailIndex  string `json:"detail_index"`
	Detail       string `json:"detail"`
	ActionIndex  string `json:"action_index"`
	Action       string `json:"action"`
}

// Values returns the row's fields in FieldNames order.
func (r Row) Values() []string {
	return []string{
		r.SaveID, r.SavedAt, r.LinkUp, r.FuncLocation, r.DateField,
		r.Shift, r.User, r.CardIndex, r.Issue, r.DetailIndex,
		r.Detail, r.ActionIndex, r.Action,
	}
}

// Field returns the named field's value, or "" for an unknown name.
func (r Row) Field(name string) string {
	switch name {
	case "save_id":
		return r.SaveID
	case "saved_at":
		return r.SavedAt
	case "link_up":
		return r.LinkUp
	case "func_location":
		return r.FuncLocation
	case "date_field":
		return r.DateField
	case "shift":
		return r.Shift
	case "user":
		return r.User
	case "card_index":
		return r.CardIndex
	case "issue":
		return r.Issue
	case "detail_index":
		return r.DetailIndex
	case "detail":
		return r.Detail
	case "action_index":
		return r.ActionIndex
	case "action":
		return r.Action
	default:
		return ""
	}
}

// DecodeRows parses a JSON array of row objects. Unknown keys are dropped and
// missing keys decode to "", so snapshot files written by newer or older
// producers import cleanly.
func DecodeRows(data []byte) ([]Row, error) {
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// EncodeRows serializes rows as a compact JSON array, the snapshot file
// format. Compact output keeps files small and shortens network write time.
func EncodeRows(rows []Row) ([]byte, error) {
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(rows)
}
