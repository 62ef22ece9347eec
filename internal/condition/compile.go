package condition

import (
	"regexp"

	"github.com/pjtatlow/terminus/internal/errs"
)

// Predicate is a compiled condition: a pure, thread-safe function from a
// cell's raw string value to whether the condition accepts it. Predicates
// close over any compiled regular expressions so no recompilation happens
// during validation.
type Predicate func(value string) bool

// Resolver looks up the already-compiled predicate for a datatype name, so
// that a condition expressed as a bare label (e.g. a nulltype condition
// that is just the name of another datatype) can reuse it instead of
// recompiling. Datatypes are compiled in file order, so only datatypes
// defined earlier in the datatype table are resolvable.
type Resolver interface {
	ResolvePredicate(name string) (Predicate, bool)
}

// Compile turns a parsed condition into a predicate closure. It rejects
// structural nodes (from/tree/under/primary/unique) — those are consumed
// by the schema generator and dependency resolver instead, never evaluated
// against cell values.
func Compile(node *Node, resolve Resolver) (Predicate, error) {
	switch node.Kind {
	case KindLabel:
		if resolve != nil {
			if pred, ok := resolve.ResolvePredicate(node.Label); ok {
				return pred, nil
			}
		}
		return nil, errs.NewConfigError("undefined datatype '%s' referenced in condition", node.Label)

	case KindFunction:
		return compileFunction(node)

	case KindField:
		return nil, errs.NewConfigError("'%s' is a structural reference and cannot be used as a condition", node.String())

	default:
		return nil, errs.NewConfigError("'%s' cannot be used as a condition on its own", node.String())
	}
}

func compileFunction(node *Node) (Predicate, error) {
	switch node.Func {
	case "equals":
		if len(node.Args) != 1 || node.Args[0].Kind != KindString {
			return nil, errs.NewConfigError("equals() takes exactly one string literal argument")
		}
		expected := node.Args[0].Text
		return func(value string) bool { return value == expected }, nil

	case "match":
		pattern, err := compileFullMatchRegexArg(node, "match")
		if err != nil {
			return nil, err
		}
		return func(value string) bool { return pattern.MatchString(value) }, nil

	case "search":
		pattern, err := compileRegexArg(node, "search")
		if err != nil {
			return nil, err
		}
		return func(value string) bool { return pattern.MatchString(value) }, nil

	case "exclude":
		pattern, err := compileRegexArg(node, "exclude")
		if err != nil {
			return nil, err
		}
		return func(value string) bool { return !pattern.MatchString(value) }, nil

	case "in":
		if len(node.Args) == 0 {
			return nil, errs.NewConfigError("in() requires at least one string literal argument")
		}
		alternatives := make(map[string]struct{}, len(node.Args))
		for _, arg := range node.Args {
			if arg.Kind != KindString {
				return nil, errs.NewConfigError("in() arguments must be string literals")
			}
			alternatives[arg.Text] = struct{}{}
		}
		return func(value string) bool {
			_, ok := alternatives[value]
			return ok
		}, nil

	case "from", "tree", "under":
		return nil, errs.NewConfigError("%s(...) is a structural expression and cannot be used as a condition", node.Func)

	case "primary", "unique":
		return nil, errs.NewConfigError("%s is a structural label and cannot be used as a condition", node.Func)

	default:
		return nil, errs.NewConfigError("unrecognized condition function '%s'", node.Func)
	}
}

func compileRegexArg(node *Node, fn string) (*regexp.Regexp, error) {
	if len(node.Args) != 1 || node.Args[0].Kind != KindRegex {
		return nil, errs.NewConfigError("%s() takes exactly one regex literal argument", fn)
	}
	arg := node.Args[0]
	pattern := arg.Text
	if arg.Flags != "" {
		pattern = "(?" + arg.Flags + ")" + pattern
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errs.NewConfigError("invalid regex in %s(): %v", fn, err)
	}
	return compiled, nil
}

// compileFullMatchRegexArg compiles match()'s argument anchored at both ends
// (\A...\z), so it behaves like Python's re.fullmatch rather than Go's
// default leftmost-first FindStringIndex, which can miss a valid full match
// that requires backtracking (e.g. "a|ab" against "ab").
func compileFullMatchRegexArg(node *Node, fn string) (*regexp.Regexp, error) {
	if len(node.Args) != 1 || node.Args[0].Kind != KindRegex {
		return nil, errs.NewConfigError("%s() takes exactly one regex literal argument", fn)
	}
	arg := node.Args[0]
	pattern := arg.Text
	if arg.Flags != "" {
		pattern = "(?" + arg.Flags + ")" + pattern
	}
	compiled, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, errs.NewConfigError("invalid regex in %s(): %v", fn, err)
	}
	return compiled, nil
}

// IsStructural reports whether a parsed structure-expression node is one of
// the recognized structural forms (primary, unique, from, tree, under).
// The schema generator uses this to validate a column's `structure` cell
// without attempting to compile it as a predicate.
func IsStructural(node *Node) bool {
	switch node.Kind {
	case KindLabel:
		return node.Label == "primary" || node.Label == "unique"
	case KindFunction:
		switch node.Func {
		case "from", "tree", "under":
			return true
		}
	}
	return false
}
