package expr

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formengine/pkg/bridge"
	"github.com/goliatone/go-formengine/pkg/form"
)

// env carries one evaluation's inputs. Evaluation is a pure function of
// (expression, snapshot); nodes read through Snapshot.Lookup and never write.
type env struct {
	snap  *form.Snapshot
	funcs *bridge.Registry
}

// node is one parsed expression fragment. Expressions are parsed once into a
// tagged AST and evaluated by structural recursion; no text matching happens
// at evaluation time.
type node interface {
	eval(e *env) (any, error)
}

type litNode struct {
	value any
}

func (n litNode) eval(*env) (any, error) { return n.value, nil }

type pathNode struct {
	path string
}

func (n pathNode) eval(e *env) (any, error) {
	value, ok := e.snap.Lookup(n.path)
	if !ok {
		return nil, nil
	}
	return value, nil
}

// root returns the first path segment — the element the path reads from.
func (n pathNode) root() string {
	if idx := strings.IndexByte(n.path, '.'); idx >= 0 {
		return n.path[:idx]
	}
	return n.path
}

type notNode struct {
	inner node
}

func (n notNode) eval(e *env) (any, error) {
	value, err := n.inner.eval(e)
	if err != nil {
		return nil, err
	}
	return !truthy(value), nil
}

type andNode struct {
	left, right node
}

func (n andNode) eval(e *env) (any, error) {
	left, err := n.left.eval(e)
	if err != nil {
		return nil, err
	}
	if !truthy(left) {
		return false, nil
	}
	right, err := n.right.eval(e)
	if err != nil {
		return nil, err
	}
	return truthy(right), nil
}

type orNode struct {
	left, right node
}

func (n orNode) eval(e *env) (any, error) {
	left, err := n.left.eval(e)
	if err != nil {
		return nil, err
	}
	if truthy(left) {
		return true, nil
	}
	right, err := n.right.eval(e)
	if err != nil {
		return nil, err
	}
	return truthy(right), nil
}

type cmpNode struct {
	op          tokenKind
	left, right node
}

func (n cmpNode) eval(e *env) (any, error) {
	left, err := n.left.eval(e)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(e)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokenEq:
		return equalValues(left, right), nil
	case tokenNeq:
		return !equalValues(left, right), nil
	case tokenLT, tokenLTE, tokenGT, tokenGTE:
		cmp, ok := orderValues(left, right)
		if !ok {
			return false, nil
		}
		switch n.op {
		case tokenLT:
			return cmp < 0, nil
		case tokenLTE:
			return cmp <= 0, nil
		case tokenGT:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	default:
		return nil, fmt.Errorf("formengine/expr: unsupported comparison operator")
	}
}

type callNode struct {
	name string
	args []node
}

func (n callNode) eval(e *env) (any, error) {
	args := make([]any, len(n.args))
	for i, arg := range n.args {
		value, err := arg.eval(e)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}

	if fn, ok := builtins[n.name]; ok {
		if err := fn.checkArity(n.name, len(args)); err != nil {
			return nil, err
		}
		return fn.call(args)
	}

	// Anything not on the builtin allowlist dispatches through the native
	// function bridge; unregistered names fail instead of executing.
	result, err := e.funcs.Execute(n.name, args)
	if err != nil {
		return nil, fmt.Errorf("formengine/expr: call %q: %w", n.name, err)
	}
	return result, nil
}

// collectPaths gathers the root element of every path reference in the tree.
func collectPaths(n node, out map[string]struct{}) {
	switch typed := n.(type) {
	case pathNode:
		if root := strings.TrimSpace(typed.root()); root != "" {
			out[root] = struct{}{}
		}
	case notNode:
		collectPaths(typed.inner, out)
	case andNode:
		collectPaths(typed.left, out)
		collectPaths(typed.right, out)
	case orNode:
		collectPaths(typed.left, out)
		collectPaths(typed.right, out)
	case cmpNode:
		collectPaths(typed.left, out)
		collectPaths(typed.right, out)
	case callNode:
		for _, arg := range typed.args {
			collectPaths(arg, out)
		}
	}
}
