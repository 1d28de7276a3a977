package history

import "strconv"

// Meta is the session metadata stamped onto every row of one submission.
type Meta struct {
	SaveID       string
	SavedAt      string
	LinkUp       string
	FuncLocation string
	DateField    string
	Shift        string
	User         string
}

// Detail is one detail entry under an issue card.
type Detail struct {
	Text    string   `json:"text"`
	Actions []string `json:"actions"`
}

// Card is one issue card in a report.
type Card struct {
	Issue   string   `json:"issue"`
	Details []Detail `json:"details"`
}

// Report is the hierarchical input to Flatten.
type Report struct {
	Cards []Card `json:"cards"`
}

// Flatten expands a report into rows: one row per leaf action, one row with
// empty action fields for a detail without actions, and one row with empty
// detail and action fields for a card without details. Indices are 1-based
// positions within the parent.
func Flatten(report Report, meta Meta) []Row {
	issueFn := func(card any) (string, error) {
		return card.(Card).Issue, nil
	}
	detailsFn := func(card any) ([]Detail, error) {
		return card.(Card).Details, nil
	}
	cards := make([]any, len(report.Cards))
	for i, c := range report.Cards {
		cards[i] = c
	}
	return BuildRows(cards, issueFn, detailsFn, meta)
}

// BuildRows is the extractor-driven form of Flatten, for callers whose cards
// are opaque UI objects rather than plain data. An extractor that fails or
// panics on one card yields empty text for that node only; the rest of the
// report still flattens.
func BuildRows(
	cards []any,
	issueFn func(card any) (string, error),
	detailsFn func(card any) ([]Detail, error),
	meta Meta,
) []Row {
	var rows []Row

	for i, card := range cards {
		issue := extractIssue(card, issueFn)
		details := extractDetails(card, detailsFn)

		base := Row{
			SaveID:       meta.SaveID,
			SavedAt:      meta.SavedAt,
			LinkUp:       meta.LinkUp,
			FuncLocation: meta.FuncLocation,
			DateField:    meta.DateField,
			Shift:        meta.Shift,
			User:         meta.User,
			CardIndex:    strconv.Itoa(i + 1),
			Issue:        issue,
		}

		if len(details) == 0 {
			rows = append(rows, base)
			continue
		}

		for j, detail := range details {
			withDetail := base
			withDetail.DetailIndex = strconv.Itoa(j + 1)
			withDetail.Detail = detail.Text

			if len(detail.Actions) == 0 {
				rows = append(rows, withDetail)
				continue
			}

			for k, action := range detail.Actions {
				withAction := withDetail
				withAction.ActionIndex = strconv.Itoa(k + 1)
				withAction.Action = action
				rows = append(rows, withAction)
			}
		}
	}

	return rows
}

func extractIssue(card any, fn func(any) (string, error)) (issue string) {
	defer func() {
		if recover() != nil {
			issue = ""
		}
	}()
	s, err := fn(card)
	if err != nil {
		return ""
	}
	return s
}

func extractDetails(card any, fn func(any) ([]Detail, error)) (details []Detail) {
	defer func() {
		if recover() != nil {
			details = nil
		}
	}()
	d, err := fn(card)
	if err != nil {
		return nil
	}
	return d
}
