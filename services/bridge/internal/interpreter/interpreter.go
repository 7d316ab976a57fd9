package interpreter

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/diagnosis/tablelink/pkg/utils"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/google/uuid"
)

type ActionKind string

const (
	ActionIgnore          ActionKind = "ignore"
	ActionReplyHelp       ActionKind = "reply_help"
	ActionPromptForCode   ActionKind = "prompt_for_code"
	ActionIssueBridgeLink ActionKind = "issue_bridge_link"
)

// Action is what the webhook pipeline should do with a message. Location
// and SenderPhone are only set for ActionIssueBridgeLink; the location may
// be partial.
type Action struct {
	Kind        ActionKind
	Location    domain.Location
	SenderPhone string
}

// Degradation records a best-effort step that failed without aborting
// interpretation.
type Degradation struct {
	Step    string
	Message string
	Err     error
}

func (d Degradation) String() string {
	if d.Err != nil {
		return fmt.Sprintf("%s: %s: %v", d.Step, d.Message, d.Err)
	}
	return d.Step + ": " + d.Message
}

type Interpretation struct {
	Action   Action
	Degraded []Degradation
}

// TableLookup resolves a printed table code. A miss is (nil, nil). An
// empty branchID means an unscoped lookup.
type TableLookup interface {
	FindTableByCode(ctx context.Context, code, branchID string) (*domain.Table, error)
}

type Interpreter struct {
	tables        TableLookup
	rules         []Rule
	helpKeywords  map[string]struct{}
	startKeywords map[string]struct{}
}

type Option func(*Interpreter)

func WithRules(rules ...Rule) Option {
	return func(i *Interpreter) { i.rules = rules }
}

func WithHelpKeywords(words ...string) Option {
	return func(i *Interpreter) { i.helpKeywords = keywordSet(words) }
}

func WithStartKeywords(words ...string) Option {
	return func(i *Interpreter) { i.startKeywords = keywordSet(words) }
}

// New builds an interpreter. tables may be nil, in which case table codes
// are passed through unresolved.
func New(tables TableLookup, opts ...Option) *Interpreter {
	i := &Interpreter{
		tables:        tables,
		rules:         DefaultRules,
		helpKeywords:  keywordSet(DefaultHelpKeywords),
		startKeywords: keywordSet(DefaultStartKeywords),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Interpret never fails. Only the table lookup performs I/O and its
// failures are reported in Degraded.
func (i *Interpreter) Interpret(ctx context.Context, msg domain.InboundMessage) Interpretation {
	text := utils.NormalizeString(msg.Text)
	if text == "" {
		return Interpretation{Action: Action{Kind: ActionIgnore}}
	}

	if i.isHelp(text) {
		return Interpretation{Action: Action{Kind: ActionReplyHelp}}
	}

	loc, started, bare := i.extract(text)
	if loc.IsEmpty() {
		if started {
			return Interpretation{Action: Action{Kind: ActionPromptForCode}}
		}
		return Interpretation{Action: Action{Kind: ActionIgnore}}
	}

	var out Interpretation
	if loc.TableID != "" && !isCanonicalID(loc.TableID) {
		var resolved bool
		resolved, out.Degraded = i.resolveTable(ctx, &loc)

		// "order now" is a request to start, not a table called "now".
		if bare && !resolved && !looksLikeCode(loc.TableID) {
			return Interpretation{
				Action:   Action{Kind: ActionPromptForCode},
				Degraded: failedOnly(out.Degraded),
			}
		}
	}

	out.Action = Action{
		Kind:        ActionIssueBridgeLink,
		Location:    loc,
		SenderPhone: senderPhone(msg.SenderID),
	}
	return out
}

// isHelp matches the whole message or its first word, so a help request
// wins over any fields that follow it.
func (i *Interpreter) isHelp(text string) bool {
	if _, ok := i.helpKeywords[keyword(text)]; ok {
		return true
	}
	_, ok := i.helpKeywords[keyword(strings.Fields(text)[0])]
	return ok
}

// extract applies the field rules. A start keyword followed by exactly one
// bare token takes that token as a candidate table reference; bare reports
// that case so the caller can reject ordinary words.
func (i *Interpreter) extract(text string) (loc domain.Location, started, bare bool) {
	words := strings.Fields(text)
	_, started = i.startKeywords[keyword(words[0])]

	if started && len(words) == 2 && !strings.ContainsAny(words[1], ":=") {
		if token := strings.Trim(words[1], ".,;!?¡¿"); token != "" {
			return domain.Location{TableID: token}, true, true
		}
	}

	for _, rule := range i.rules {
		value, ok := rule.Extract(text)
		if !ok {
			continue
		}
		switch rule.Field {
		case FieldTable:
			loc.TableID = value
		case FieldBranch:
			loc.BranchID = value
		case FieldRestaurant:
			loc.RestaurantID = value
		}
	}
	return loc, started, false
}

// resolveTable swaps a printed table code for the canonical id, scoped by
// branch first when one is known.
func (i *Interpreter) resolveTable(ctx context.Context, loc *domain.Location) (bool, []Degradation) {
	if i.tables == nil {
		return false, []Degradation{{Step: "table_lookup", Message: "no table lookup configured"}}
	}

	var degraded []Degradation
	var table *domain.Table

	if loc.BranchID != "" {
		t, err := i.tables.FindTableByCode(ctx, loc.TableID, loc.BranchID)
		if err != nil {
			degraded = append(degraded, Degradation{Step: "table_lookup", Message: "scoped lookup failed", Err: err})
		}
		table = t
	}

	if table == nil {
		t, err := i.tables.FindTableByCode(ctx, loc.TableID, "")
		if err != nil {
			degraded = append(degraded, Degradation{Step: "table_lookup", Message: "lookup failed", Err: err})
		}
		table = t
	}

	if table == nil {
		if len(degraded) == 0 {
			degraded = append(degraded, Degradation{Step: "table_lookup", Message: "table code " + loc.TableID + " not found"})
		}
		return false, degraded
	}

	loc.TableID = table.ID
	if table.BranchID != "" {
		loc.BranchID = table.BranchID
	}
	if table.RestaurantID != "" {
		loc.RestaurantID = table.RestaurantID
	}
	return true, degraded
}

func keyword(s string) string {
	return strings.ToLower(strings.Trim(s, " .,;!?¡¿/"))
}

// looksLikeCode accepts printed table codes, which carry at least one
// digit ("A12", "7", "t-04").
func looksLikeCode(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func failedOnly(degraded []Degradation) []Degradation {
	var out []Degradation
	for _, d := range degraded {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

func isCanonicalID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func senderPhone(senderID string) string {
	phone := utils.NormalizePhone(senderID)
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}
