package hsm

import (
	"errors"
	"fmt"
	"reflect"
)

// Category classifies errors for exception routing.
// A category matches an error when the error is-a member of it.
type Category interface {
	Match(err error) bool
	String() string
	// key identifies the category inside an exception table
	key() any
}

type isCategory struct {
	target error
}

type isKey struct {
	target error
}

// Is returns a category matching every error for which errors.Is(err, target) holds
func Is(target error) Category {
	return &isCategory{target: target}
}

func (c *isCategory) Match(err error) bool { return errors.Is(err, c.target) }
func (c *isCategory) String() string       { return c.target.Error() }

func (c *isCategory) key() any {
	if t := reflect.TypeOf(c.target); t != nil && t.Comparable() {
		return isKey{target: c.target}
	}
	return c
}

type asCategory[T error] struct{}

type asKey struct {
	t reflect.Type
}

// As returns a category matching every error for which errors.As finds a T
func As[T error]() Category {
	return asCategory[T]{}
}

func (asCategory[T]) Match(err error) bool {
	var target T
	return errors.As(err, &target)
}

func (asCategory[T]) String() string { return reflect.TypeOf((*T)(nil)).Elem().String() }
func (asCategory[T]) key() any       { return asKey{t: reflect.TypeOf((*T)(nil)).Elem()} }

type anyError struct{}

func (anyError) Match(err error) bool { return err != nil }
func (anyError) String() string       { return "error" }
func (anyError) key() any             { return anyError{} }

// AnyError matches every non-nil error
var AnyError Category = anyError{}

type funcCategory struct {
	name  string
	match func(error) bool
}

// Match returns a named category backed by a predicate
func Match(name string, match func(error) bool) Category {
	return &funcCategory{name: name, match: match}
}

func (c *funcCategory) Match(err error) bool { return err != nil && c.match(err) }
func (c *funcCategory) String() string       { return c.name }
func (c *funcCategory) key() any             { return c }

// ExceptionRule routes errors of Category to Target.
// A zero Target means "stay" in the state the transition started from.
type ExceptionRule[S State] struct {
	Category Category
	Target   S
}

func (r ExceptionRule[S]) String() string {
	var zero S
	if r.Target == zero {
		return fmt.Sprintf("%s->stay", r.Category)
	}
	return fmt.Sprintf("%s->%v", r.Category, r.Target)
}

// ExceptionTable is an insertion ordered list of exception rules
type ExceptionTable[S State] struct {
	rules []ExceptionRule[S]
}

// NewExceptionTable creates an empty table
func NewExceptionTable[S State]() *ExceptionTable[S] {
	return &ExceptionTable[S]{}
}

// Set adds a rule, or retargets the rule of the same category keeping its position
func (t *ExceptionTable[S]) Set(category Category, target S) {
	k := category.key()
	for i := range t.rules {
		if t.rules[i].Category.key() == k {
			t.rules[i].Target = target
			return
		}
	}
	t.rules = append(t.rules, ExceptionRule[S]{Category: category, Target: target})
}

// Lookup returns the first inserted rule matching err
func (t *ExceptionTable[S]) Lookup(err error) (ExceptionRule[S], bool) {
	if t == nil || err == nil {
		return ExceptionRule[S]{}, false
	}
	for _, rule := range t.rules {
		if rule.Category.Match(err) {
			return rule, true
		}
	}
	return ExceptionRule[S]{}, false
}

// Clone returns an independent copy of the table
func (t *ExceptionTable[S]) Clone() *ExceptionTable[S] {
	if t == nil {
		return NewExceptionTable[S]()
	}
	return &ExceptionTable[S]{rules: append([]ExceptionRule[S](nil), t.rules...)}
}

// HasTarget reports whether any rule routes to state
func (t *ExceptionTable[S]) HasTarget(state S) bool {
	if t == nil {
		return false
	}
	for _, rule := range t.rules {
		if rule.Target == state {
			return true
		}
	}
	return false
}

// Len returns the number of rules
func (t *ExceptionTable[S]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Rules returns a copy of the rules in lookup order
func (t *ExceptionTable[S]) Rules() []ExceptionRule[S] {
	if t == nil {
		return nil
	}
	return append([]ExceptionRule[S](nil), t.rules...)
}
