// Package entity infers domain entities and classifies operations into
// per-entity CRUD and complex buckets from operationId naming conventions.
package entity

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/oasgen/internal/spec"
)

// Slot is one of the five CRUD positions.
type Slot string

const (
	SlotCreate Slot = "create"
	SlotGet    Slot = "get"
	SlotUpdate Slot = "update"
	SlotDelete Slot = "delete"
	SlotList   Slot = "list"
)

// Slots lists the CRUD positions in their fixed order.
var Slots = []Slot{SlotCreate, SlotGet, SlotUpdate, SlotDelete, SlotList}

// OperationID returns the exact operationId that fills slot for entity.
func (s Slot) OperationID(entity string) string {
	switch s {
	case SlotCreate:
		return "Create" + entity
	case SlotGet:
		return "Get" + entity
	case SlotUpdate:
		return "Update" + entity
	case SlotDelete:
		return "Delete" + entity
	case SlotList:
		return "List" + entity + "s"
	}
	return ""
}

// CRUD holds at most one operation per slot.
type CRUD struct {
	Create *spec.Operation
	Get    *spec.Operation
	Update *spec.Operation
	Delete *spec.Operation
	List   *spec.Operation
}

func (c *CRUD) slot(s Slot) **spec.Operation {
	switch s {
	case SlotCreate:
		return &c.Create
	case SlotGet:
		return &c.Get
	case SlotUpdate:
		return &c.Update
	case SlotDelete:
		return &c.Delete
	default:
		return &c.List
	}
}

// Lookup returns the operation in slot s, or nil.
func (c CRUD) Lookup(s Slot) *spec.Operation { return *c.slot(s) }

// Empty reports whether no slot is filled.
func (c CRUD) Empty() bool {
	return c.Create == nil && c.Get == nil && c.Update == nil && c.Delete == nil && c.List == nil
}

type Entity struct {
	Name string
	// Service is the service of the first CRUD operation found.
	Service string
	CRUD    CRUD
	// Complex operations keep document order.
	Complex []spec.Operation
}

// Severity of a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is an observable note about an ambiguous input.
type Diagnostic struct {
	Severity    Severity `json:"severity" yaml:"severity"`
	Kind        string   `json:"kind" yaml:"kind"`
	Entity      string   `json:"entity,omitempty" yaml:"entity,omitempty"`
	OperationID string   `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Message     string   `json:"message" yaml:"message"`
}

// Diagnostic kinds.
const (
	KindDuplicateOperation = "duplicate-operation"
	KindDuplicateSlot      = "duplicate-slot"
)

// DuplicatePolicy decides what a duplicate operationId does to a run.
type DuplicatePolicy int

const (
	// Warn keeps the first operation and records a diagnostic.
	Warn DuplicatePolicy = iota
	// Reject fails inference with *DuplicateError.
	Reject
)

// ParseDuplicatePolicy accepts "warn" or "reject".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return Warn, nil
	case "reject":
		return Reject, nil
	}
	return Warn, fmt.Errorf("unknown duplicate policy %q (want warn or reject)", s)
}

func (p DuplicatePolicy) String() string {
	if p == Reject {
		return "reject"
	}
	return "warn"
}

// DuplicateError reports an operationId that appears more than once.
type DuplicateError struct {
	OperationID string
	Services    []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate operationId %q (services: %s)", e.OperationID, strings.Join(e.Services, ", "))
}

// Inference is the outcome of classifying a set of operations.
type Inference struct {
	Entities    []Entity
	Diagnostics []Diagnostic
}

// Entity returns the named entity.
func (in *Inference) Entity(name string) (*Entity, bool) {
	for i := range in.Entities {
		if in.Entities[i].Name == name {
			return &in.Entities[i], true
		}
	}
	return nil, false
}

type Engine struct {
	rules  []ComplexRule
	policy DuplicatePolicy
	logger *slog.Logger
}

type Option func(*Engine)

func WithDuplicatePolicy(p DuplicatePolicy) Option { return func(e *Engine) { e.policy = p } }

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an Engine using the given complex-operation rule table.
// A nil table disables rule-based matching; pass DefaultRules() for the
// built-in table.
func NewEngine(rules []ComplexRule, opts ...Option) *Engine {
	e := &Engine{
		rules:  append([]ComplexRule(nil), rules...),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Universe derives candidate entity names from schema names and operationIds
// ending in "ResponseContent" or "Response": the suffix and then a leading
// "Get" are stripped. The result is de-duplicated and sorted.
func (e *Engine) Universe(names []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, n := range names {
		c := candidate(n)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func candidate(name string) string {
	var base string
	switch {
	case strings.HasSuffix(name, "ResponseContent"):
		base = strings.TrimSuffix(name, "ResponseContent")
	case strings.HasSuffix(name, "Response"):
		base = strings.TrimSuffix(name, "Response")
	default:
		return ""
	}
	return strings.TrimPrefix(base, "Get")
}

// Infer classifies ops against the entity universe. CRUD slots are matched by
// exact operationId; the first operation wins a slot. Operations claimed by
// no CRUD slot become complex operations of every entity they match.
// Entities left without any CRUD operation are dropped.
func (e *Engine) Infer(ops []spec.Operation, universe []string) (*Inference, error) {
	res := &Inference{}

	byID := make(map[string][]int, len(ops))
	var order []string
	for i, op := range ops {
		if op.ID == "" {
			continue
		}
		if _, ok := byID[op.ID]; !ok {
			order = append(order, op.ID)
		}
		byID[op.ID] = append(byID[op.ID], i)
	}
	for _, id := range order {
		idx := byID[id]
		if len(idx) < 2 {
			continue
		}
		var services []string
		for _, i := range idx {
			services = append(services, ops[i].Service)
		}
		if e.policy == Reject {
			return nil, &DuplicateError{OperationID: id, Services: services}
		}
		d := Diagnostic{
			Severity:    SeverityWarning,
			Kind:        KindDuplicateOperation,
			OperationID: id,
			Message:     fmt.Sprintf("operationId %q declared %d times (services: %s); the first declaration is used", id, len(idx), strings.Join(services, ", ")),
		}
		e.logger.Warn("duplicate operationId", "operation", id, "count", len(idx))
		res.Diagnostics = append(res.Diagnostics, d)
	}

	claimed := map[string]bool{}
	entities := make([]Entity, 0, len(universe))
	for _, name := range universe {
		ent := Entity{Name: name}
		for _, s := range Slots {
			idx := byID[s.OperationID(name)]
			if len(idx) == 0 {
				continue
			}
			op := ops[idx[0]]
			*ent.CRUD.slot(s) = &op
			claimed[op.ID] = true
			if ent.Service == "" {
				ent.Service = op.Service
			}
			if len(idx) > 1 {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Severity:    SeverityWarning,
					Kind:        KindDuplicateSlot,
					Entity:      name,
					OperationID: op.ID,
					Message:     fmt.Sprintf("%s slot of %s matched %d operations; kept the one from service %q", s, name, len(idx), op.Service),
				})
			}
		}
		entities = append(entities, ent)
	}

	seenComplex := map[string]bool{}
	for _, op := range ops {
		if op.ID == "" || claimed[op.ID] || seenComplex[op.ID] || !complexShape(op.ID) {
			continue
		}
		seenComplex[op.ID] = true
		for i := range entities {
			if e.isComplexFor(entities[i].Name, op.ID) {
				entities[i].Complex = append(entities[i].Complex, op)
			}
		}
	}

	for _, ent := range entities {
		if ent.CRUD.Empty() {
			e.logger.Debug("dropping entity without CRUD operations", "entity", ent.Name)
			continue
		}
		res.Entities = append(res.Entities, ent)
	}
	return res, nil
}

func complexShape(id string) bool {
	return strings.HasPrefix(id, "Get") && strings.Contains(id, "By")
}

func (e *Engine) isComplexFor(entity, id string) bool {
	if strings.Contains(strings.ToLower(id), strings.ToLower(entity)) {
		return true
	}
	for _, r := range e.rules {
		if r.matches(entity, id) {
			return true
		}
	}
	return false
}
