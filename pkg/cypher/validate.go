package cypher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/schema"
)

const op = "validate query"

// mutating clauses and write-only keywords; matched as unquoted identifiers
// that are not property keys or map keys
var forbidden = map[string]string{
	"CREATE":       "CREATE",
	"MERGE":        "MERGE",
	"DELETE":       "DELETE",
	"DETACH":       "DETACH DELETE",
	"SET":          "SET",
	"REMOVE":       "REMOVE",
	"DROP":         "DROP",
	"LOAD":         "LOAD CSV",
	"FOREACH":      "FOREACH",
	"TRANSACTIONS": "CALL IN TRANSACTIONS",
	"PERIODIC":     "PERIODIC COMMIT",
	"COMMIT":       "COMMIT",
	"USE":          "USE",
}

// procedure and function namespaces that may write or reach outside the graph
var forbiddenNamespaces = map[string]bool{
	"apoc": true,
	"gds":  true,
	"dbms": true,
	"db":   true,
}

// read clauses a statement may start with
var leadingClauses = []string{"MATCH", "OPTIONAL", "WITH", "UNWIND", "RETURN", "CALL"}

// Result is a query that passed validation.
type Result struct {
	Query string
	// LimitApplied is set when the row cap was added or lowered.
	LimitApplied bool
	// Warnings lists suspicious but harmless findings, such as property
	// names the schema does not declare.
	Warnings []string
}

// Validate checks that query is a single read-only statement that only
// refers to labels and relationship types of reg, and that its row count is
// capped at maxRows.
//
// Lexical problems are reported as QueryParse errors; anything that is
// well-formed but not allowed is reported as a QueryGeneration error.
func Validate(query string, reg *schema.Registry, maxRows int) (*Result, error) {
	query = strings.TrimSpace(query)
	toks, err := lex(query)
	if err != nil {
		return nil, common.Wrap(common.KindQueryParse, op, err)
	}
	if len(toks) > 0 && toks[len(toks)-1].punct(";") {
		toks = toks[:len(toks)-1]
	}
	if len(toks) == 0 {
		return nil, common.Errorf(common.KindQueryParse, op, "empty query")
	}

	v := &validator{toks: toks, reg: reg}
	if err := v.run(); err != nil {
		return nil, err
	}

	res := &Result{Query: query[:toks[len(toks)-1].end], Warnings: v.warnings}
	if maxRows > 0 {
		res.Query, res.LimitApplied = v.capRows(res.Query, maxRows)
	}
	return res, nil
}

type validator struct {
	toks     []token
	reg      *schema.Registry
	warnings []string

	hasReturn bool
	hasUnion  bool
}

func (v *validator) reject(format string, args ...any) error {
	return common.Errorf(common.KindQueryGeneration, op, format, args...)
}

func (v *validator) run() error {
	if first := v.toks[0]; !startsReadClause(first) {
		return v.reject("statement must start with a read clause, got %q", first.text)
	}

	// brackets: '(' ,'{' or '[' plus whether a '[' opens a relationship
	type frame struct {
		open string
		rel  bool
	}
	var stack []frame
	properties := v.knownProperties()

	for i, t := range v.toks {
		prev, next := v.at(i-1), v.at(i+1)

		switch t.kind {
		case tokPunct:
			switch t.text {
			case ";":
				return v.reject("multiple statements are not allowed")
			case "(", "{":
				stack = append(stack, frame{open: t.text})
			case "[":
				stack = append(stack, frame{open: "[", rel: prev.punct("-") || prev.punct("<-")})
			case ")", "]", "}":
				stack = stack[:len(stack)-1]
			case ":":
				inMap := len(stack) > 0 && stack[len(stack)-1].open == "{"
				if inMap {
					continue
				}
				inRel := len(stack) > 0 && stack[len(stack)-1].rel
				if err := v.checkNames(i+1, inRel); err != nil {
					return err
				}
			case ".":
				// property access; namespaces are handled on the identifier
				if next.kind == tokIdent && !v.at(i+2).punct("(") && !v.at(i+2).punct(".") && !properties[next.text] {
					v.warnings = append(v.warnings, fmt.Sprintf("unknown property %q", next.text))
				}
			}

		case tokIdent:
			if prev.punct(".") || next.punct(":") && len(stack) > 0 && stack[len(stack)-1].open == "{" {
				continue
			}
			upper := strings.ToUpper(t.text)
			if what, bad := forbidden[upper]; bad {
				return v.reject("%s is not allowed in a read-only query", what)
			}
			if upper == "CALL" && !next.punct("{") {
				return v.reject("procedure calls are not allowed")
			}
			if forbiddenNamespaces[strings.ToLower(t.text)] && next.punct(".") && v.isCall(i) {
				return v.reject("%s.* functions are not allowed", strings.ToLower(t.text))
			}
			if upper == "RETURN" {
				v.hasReturn = true
			}
			if upper == "UNION" {
				v.hasUnion = true
			}
		}
	}

	if !v.hasReturn {
		return v.reject("query has no RETURN clause")
	}
	return nil
}

func startsReadClause(t token) bool {
	for _, kw := range leadingClauses {
		if t.keyword(kw) {
			return true
		}
	}
	return false
}

// at returns the token at i, or a zero token outside the stream.
func (v *validator) at(i int) token {
	if i < 0 || i >= len(v.toks) {
		return token{kind: -1}
	}
	return v.toks[i]
}

// isCall reports whether the dotted name starting at i is invoked.
func (v *validator) isCall(i int) bool {
	j := i + 1
	for v.at(j).punct(".") && (v.at(j+1).kind == tokIdent || v.at(j+1).kind == tokQuoted) {
		j += 2
	}
	return v.at(j).punct("(")
}

// checkNames validates the label or relationship type expression starting
// at token i, for example "Person", "ACTED_IN|DIRECTED" or "Person&Movie".
func (v *validator) checkNames(i int, relationship bool) error {
	for {
		t := v.at(i)
		if t.punct("!") || t.punct(":") {
			i++
			continue
		}
		if t.kind != tokIdent && t.kind != tokQuoted {
			return common.Errorf(common.KindQueryParse, op, "expected a name after ':' at offset %d", t.start)
		}
		if relationship {
			if _, ok := v.reg.Relation(t.text); !ok {
				return v.reject("unknown relationship type %q", t.text)
			}
		} else if !v.reg.IsLabel(t.text) {
			return v.reject("unknown label %q", t.text)
		}

		n := v.at(i + 1)
		if n.punct("|") || n.punct("&") || n.punct(":") {
			i += 2
			continue
		}
		return nil
	}
}

func (v *validator) knownProperties() map[string]bool {
	props := map[string]bool{schema.KeyProperty: true, schema.NameProperty: true}
	for _, l := range v.reg.Labels() {
		for _, p := range v.reg.PropertyNames(l) {
			props[p] = true
		}
	}
	for _, rt := range v.reg.RelationTypes() {
		rel, _ := v.reg.Relation(rt)
		for _, p := range rel.Properties {
			props[p.Name] = true
		}
	}
	return props
}

// capRows appends LIMIT maxRows when the statement has none, or lowers the
// final top-level literal LIMIT when it exceeds maxRows. UNION statements are
// left untouched; each branch is limited by the store's row cap instead.
func (v *validator) capRows(query string, maxRows int) (string, bool) {
	if v.hasUnion {
		return query, false
	}

	depth := 0
	last := -1
	for i, t := range v.toks {
		switch {
		case t.punct("(") || t.punct("[") || t.punct("{"):
			depth++
		case t.punct(")") || t.punct("]") || t.punct("}"):
			depth--
		case depth == 0 && t.keyword("LIMIT"):
			last = i
		}
	}

	if last < 0 {
		return fmt.Sprintf("%s LIMIT %d", query, maxRows), true
	}
	n := v.at(last + 1)
	if n.kind != tokNumber {
		// parameter or expression; the store cap still applies
		return query, false
	}
	if limit, err := strconv.Atoi(n.text); err == nil && limit <= maxRows {
		return query, false
	}
	return query[:n.start] + strconv.Itoa(maxRows) + query[n.end:], true
}

// IsParseError reports whether err came from lexing.
func IsParseError(err error) bool {
	return errors.Is(err, common.ErrQueryParse)
}
