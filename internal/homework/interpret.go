package homework

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultVerdicts maps a status code to the text sent to the chat.
var DefaultVerdicts = map[string]string{
	"approved":  "Работа проверена: ревьюеру всё понравилось. Ура!",
	"reviewing": "Работа взята на проверку ревьюером.",
	"rejected":  "Работа проверена: у ревьюера есть замечания.",
}

// OutcomeKind tags the result of Interpret. Callers are expected to switch on
// every kind.
type OutcomeKind int

const (
	// NoChange: nothing has been submitted in the queried window.
	NoChange OutcomeKind = iota
	// Changed: Text holds the rendered notification.
	Changed
	// UnknownVerdict: Code is not in the verdict table.
	UnknownVerdict
	// MissingField: Field is absent (or empty) in the newest item.
	MissingField
)

func (k OutcomeKind) String() string {
	switch k {
	case NoChange:
		return "no_change"
	case Changed:
		return "changed"
	case UnknownVerdict:
		return "unknown_verdict"
	case MissingField:
		return "missing_field"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

type Outcome struct {
	Kind OutcomeKind

	Item  Item
	Text  string
	Code  string
	Field string
}

// Interpreter renders the newest homework into a notification.
type Interpreter struct {
	verdicts map[string]string
}

// NewInterpreter copies DefaultVerdicts and applies extra on top. An empty
// text in extra removes the code from the table.
func NewInterpreter(extra map[string]string) *Interpreter {
	v := make(map[string]string, len(DefaultVerdicts)+len(extra))
	for code, text := range DefaultVerdicts {
		v[code] = text
	}
	for code, text := range extra {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if strings.TrimSpace(text) == "" {
			delete(v, code)
			continue
		}
		v[code] = text
	}
	return &Interpreter{verdicts: v}
}

// Codes returns the known status codes, sorted.
func (in *Interpreter) Codes() []string {
	out := make([]string, 0, len(in.verdicts))
	for code := range in.verdicts {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Interpret looks at items[0] only.
func (in *Interpreter) Interpret(items []any) Outcome {
	if len(items) == 0 {
		return Outcome{Kind: NoChange}
	}

	obj, ok := items[0].(map[string]any)
	if !ok {
		return Outcome{Kind: MissingField, Field: KeyName}
	}

	name, ok := nonEmptyString(obj[KeyName])
	if !ok {
		return Outcome{Kind: MissingField, Field: KeyName}
	}

	rawStatus, present := obj[KeyStatus]
	if !present || rawStatus == nil {
		return Outcome{Kind: MissingField, Field: KeyStatus, Item: Item{Name: name}}
	}
	code, isString := rawStatus.(string)
	if !isString {
		code = fmt.Sprint(rawStatus)
	}
	if strings.TrimSpace(code) == "" {
		return Outcome{Kind: MissingField, Field: KeyStatus, Item: Item{Name: name}}
	}

	item := Item{Name: name, Status: code}
	verdict, known := in.verdicts[code]
	if !known || !isString {
		return Outcome{Kind: UnknownVerdict, Item: item, Code: code}
	}
	return Outcome{Kind: Changed, Item: item, Text: RenderChanged(name, verdict)}
}

func RenderChanged(name, verdict string) string {
	return fmt.Sprintf(`Changed status for "%s": %s`, name, verdict)
}

// RenderUnknown is the notice sent when the API reports a status we do not know.
func RenderUnknown(name, code string) string {
	return fmt.Sprintf(`Unexpected status for "%s": %s`, name, code)
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
