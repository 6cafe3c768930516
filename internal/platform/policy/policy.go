// Package policy decides whether an actor may perform an action on a
// resource. The role matrix lives in a casbin enforcer; the ownership
// predicates that qualify some rows are a plain Go table. Evaluation is pure:
// callers gather the Facts beforehand.
package policy

import (
	"fmt"

	casbin "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const (
	RoleAdministrator = "administrator"
	RoleSpecialist    = "specialist"
	RolePatient       = "patient"
	RoleUser          = "user"

	// roleAuthenticated matches every actor with a session.
	roleAuthenticated = "authenticated"
)

// ValidRoles lists the roles an account can hold.
var ValidRoles = map[string]bool{
	RoleAdministrator: true,
	RoleSpecialist:    true,
	RolePatient:       true,
	RoleUser:          true,
}

type Resource string

const (
	Appointment Resource = "appointment"
	Document    Resource = "document"
	History     Resource = "history"
	Patient     Resource = "patient"
	Specialist  Resource = "specialist"
	User        Resource = "user"
	Log         Resource = "log"
)

type Action string

const (
	List     Action = "list"
	ListMine Action = "list_mine"
	Read     Action = "read"
	Create   Action = "create"
	Update   Action = "update"
	Delete   Action = "delete"
	Cancel   Action = "cancel"
	Upload   Action = "upload"
	Download Action = "download"
)

// Scope is the breadth of a grant.
type Scope string

const (
	ScopeNone   Scope = "none"
	ScopeOwned  Scope = "owned"
	ScopeLinked Scope = "linked"
	ScopeAll    Scope = "all"
)

// rank orders scopes from narrowest to widest.
var rank = map[Scope]int{ScopeNone: 0, ScopeOwned: 1, ScopeLinked: 2, ScopeAll: 3}

type Subject struct {
	ActorID int64
	Roles   []string
}

// Facts are the ownership relations between the subject and one resource.
type Facts struct {
	// Actor ids of the patient and specialist behind an appointment or history.
	PatientActorID    int64
	SpecialistActorID int64
	// Actor id that uploaded a document.
	OwnerID int64
	// The subject is a specialist with any appointment with the patient the
	// resource belongs to.
	SpecialistLinked bool
	// Like SpecialistLinked but restricted to pending, confirmed or completed
	// appointments.
	SpecialistQualified bool
}

type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

type Options struct {
	// StrictHistoryRead limits history reads by patients and specialists to
	// histories they take part in.
	StrictHistoryRead bool
}

const modelText = `
[request_definition]
r = sub, obj, act, scope

[policy_definition]
p = sub, obj, act, scope

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && (p.act == "*" || r.act == p.act) && r.scope == p.scope
`

type Evaluator struct {
	enforcer *casbin.Enforcer
}

func New(opts Options) (*Evaluator, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load policy model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if _, err := e.AddPolicies(rules(opts)); err != nil {
		return nil, fmt.Errorf("load policy rules: %w", err)
	}
	return &Evaluator{enforcer: e}, nil
}

// MustNew is New for static configuration known to be valid.
func MustNew(opts Options) *Evaluator {
	ev, err := New(opts)
	if err != nil {
		panic(err)
	}
	return ev
}

// Decide returns Allow when any of the subject's grants for (res, act) holds
// for the given facts.
func (e *Evaluator) Decide(sub Subject, res Resource, act Action, f Facts) Decision {
	for _, scope := range []Scope{ScopeAll, ScopeLinked, ScopeOwned} {
		if !e.granted(sub, res, act, scope) {
			continue
		}
		if scope == ScopeAll {
			return Allow
		}
		if pred, ok := ownership[key{res, act, scope}]; ok && pred(sub.ActorID, f) {
			return Allow
		}
	}
	return Deny
}

func (e *Evaluator) Allowed(sub Subject, res Resource, act Action, f Facts) bool {
	return e.Decide(sub, res, act, f) == Allow
}

// ListScope returns the widest scope the subject holds for (res, act).
func (e *Evaluator) ListScope(sub Subject, res Resource, act Action) Scope {
	best := ScopeNone
	for _, scope := range []Scope{ScopeAll, ScopeLinked, ScopeOwned} {
		if rank[scope] > rank[best] && e.granted(sub, res, act, scope) {
			best = scope
		}
	}
	return best
}

func (e *Evaluator) granted(sub Subject, res Resource, act Action, scope Scope) bool {
	if sub.ActorID == 0 {
		return false
	}
	for _, role := range append([]string{roleAuthenticated}, sub.Roles...) {
		ok, err := e.enforcer.Enforce(role, string(res), string(act), string(scope))
		if err == nil && ok {
			return true
		}
	}
	return false
}
