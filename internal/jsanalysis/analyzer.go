// Package jsanalysis inspects JavaScript syntax trees for hard-coded
// secrets, sensitive assignments and endpoint strings.
package jsanalysis

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/rs/zerolog"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// cancelCheckInterval is how many nodes are visited between context checks.
const cancelCheckInterval = 1024

// Analyzer runs the syntax heuristics. A zero-value parser is created per
// call, so one Analyzer is safe for concurrent use.
type Analyzer struct {
	logger zerolog.Logger
}

// NewAnalyzer creates a syntax heuristic analyzer
func NewAnalyzer(logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		logger: logger.With().Str("component", "SyntaxAnalyzer").Logger(),
	}
}

// Scan parses body and returns heuristic findings in pre-order. Source that
// does not parse yields exactly one parse-error finding.
func (a *Analyzer) Scan(ctx context.Context, body []byte, sourceURL string) []models.ASTFinding {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, body)
	if err != nil {
		a.logger.Warn().Err(err).Str("url", sourceURL).Msg("Failed to parse script")
		return []models.ASTFinding{parseErrorFinding(err.Error(), models.Location{Line: 1}, sourceURL)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		msg, loc := describeSyntaxError(root)
		a.logger.Debug().Str("url", sourceURL).Str("error", msg).Msg("Script has syntax errors")
		return []models.ASTFinding{parseErrorFinding(msg, loc, sourceURL)}
	}

	w := &walker{
		src:       body,
		sourceURL: sourceURL,
		base:      parseBase(sourceURL),
		findings:  []models.ASTFinding{},
		logger:    a.logger,
	}
	w.walk(ctx, root)
	return w.findings
}

func parseErrorFinding(msg string, loc models.Location, sourceURL string) models.ASTFinding {
	return models.ASTFinding{
		Kind:        models.KindParseError,
		Location:    loc,
		Detail:      "SyntaxError",
		MatchedText: models.TruncateMatch(msg),
		SourceURL:   sourceURL,
	}
}

// describeSyntaxError finds the first ERROR or MISSING node in document order.
func describeSyntaxError(root *sitter.Node) (string, models.Location) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		loc := locationOf(n)
		if n.IsMissing() {
			return fmt.Sprintf("Missing %s (%d:%d)", n.Type(), loc.Line, loc.Column), loc
		}
		if n.Type() == "ERROR" {
			loc = locationOf(offendingToken(n))
			return fmt.Sprintf("Unexpected token (%d:%d)", loc.Line, loc.Column), loc
		}
		if !n.HasError() {
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return "Unexpected token (1:0)", models.Location{Line: 1}
}

// offendingToken picks the token an ERROR node points at: its first MISSING
// node, else the token after the construct the parser gave up on, else its
// first leaf.
func offendingToken(errNode *sitter.Node) *sitter.Node {
	if m := firstMissing(errNode); m != nil {
		return m
	}
	n := errNode
	if n.ChildCount() > 1 {
		n = n.Child(1)
	}
	for n.ChildCount() > 0 {
		n = n.Child(0)
	}
	return n
}

func firstMissing(n *sitter.Node) *sitter.Node {
	if n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			if m := firstMissing(c); m != nil {
				return m
			}
		}
	}
	return nil
}

func locationOf(n *sitter.Node) models.Location {
	p := n.StartPoint()
	return models.Location{Line: int(p.Row) + 1, Column: int(p.Column)}
}

type walker struct {
	src       []byte
	sourceURL string
	base      *url.URL
	findings  []models.ASTFinding
	logger    zerolog.Logger
}

// walk visits named nodes in pre-order without recursion.
func (w *walker) walk(ctx context.Context, root *sitter.Node) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Str("url", w.sourceURL).Msg("Syntax walk aborted")
		}
	}()

	stack := []*sitter.Node{root}
	for visited := 0; len(stack) > 0; visited++ {
		if visited%cancelCheckInterval == 0 && ctx.Err() != nil {
			w.logger.Debug().Err(ctx.Err()).Str("url", w.sourceURL).Msg("Syntax walk cancelled")
			return
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !w.visit(n) {
			continue
		}
		key := staticKey(n)
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			c := n.NamedChild(i)
			if c == nil || (key != nil && c.Equal(key)) {
				continue
			}
			stack = append(stack, c)
		}
	}
}

// keyFields names the property-name field of object and class members.
var keyFields = map[string]string{
	"pair":              "key",
	"method_definition": "name",
	"field_definition":  "property",
}

// staticKey returns the non-computed key of a member node, which the walk
// does not inspect.
func staticKey(n *sitter.Node) *sitter.Node {
	field, ok := keyFields[n.Type()]
	if !ok {
		return nil
	}
	key := n.ChildByFieldName(field)
	if key == nil || key.Type() == "computed_property_name" {
		return nil
	}
	return key
}

// visit applies the heuristic for n's kind and reports whether to descend.
// A panic on one node is contained to that node.
func (w *walker) visit(n *sitter.Node) (descend bool) {
	descend = true
	defer func() {
		if r := recover(); r != nil {
			w.logger.Warn().Interface("panic", r).Str("node", n.Type()).Msg("Skipping node")
		}
	}()

	switch n.Type() {
	case "string":
		w.checkLiteral(n)
		return false
	case "variable_declarator":
		w.checkDeclarator(n)
	case "assignment_expression", "augmented_assignment_expression":
		w.checkAssignment(n)
	case "call_expression":
		w.checkCall(n)
	}
	return true
}

func (w *walker) add(kind models.ASTFindingKind, n *sitter.Node, detail, matched string) {
	w.findings = append(w.findings, models.ASTFinding{
		Kind:        kind,
		Location:    locationOf(n),
		Detail:      detail,
		MatchedText: models.TruncateMatch(matched),
		SourceURL:   w.sourceURL,
	})
}

func (w *walker) stringValue(n *sitter.Node) (string, bool) {
	if n == nil || n.Type() != "string" {
		return "", false
	}
	return decodeStringLiteral(n.Content(w.src)), true
}

func (w *walker) checkLiteral(n *sitter.Node) {
	value, _ := w.stringValue(n)
	v := strings.TrimSpace(value)
	if len([]rune(v)) <= 4 {
		return
	}

	switch {
	case looksLikePath(v):
		w.add(models.KindEndpointLiteral, n, shorten(v), resolveAgainst(w.base, v))
	case looksLikeSecret(v):
		w.add(models.KindSecretLiteral, n, shorten(v), v)
	}
}

func (w *walker) checkDeclarator(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil || name.Type() != "identifier" {
		return
	}
	ident := name.Content(w.src)
	if !isSensitiveName(ident) {
		return
	}
	value, ok := w.stringValue(n.ChildByFieldName("value"))
	if !ok || len([]rune(value)) <= 3 {
		return
	}
	w.add(models.KindSensitiveVariableAssignment, n, "var "+ident+"=...", value)
}

func (w *walker) checkAssignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	if left == nil {
		return
	}

	var name string
	switch left.Type() {
	case "identifier":
		name = left.Content(w.src)
	case "member_expression":
		prop := left.ChildByFieldName("property")
		if prop == nil || prop.Type() != "property_identifier" {
			return
		}
		name = prop.Content(w.src)
	default:
		return
	}

	if !isSensitiveName(name) {
		return
	}
	value, ok := w.stringValue(n.ChildByFieldName("right"))
	if !ok || len([]rune(value)) <= 3 {
		return
	}
	w.add(models.KindSensitivePropertyAssignment, n, name+"=...", value)
}

func (w *walker) checkCall(n *sitter.Node) {
	callee := n.ChildByFieldName("function")
	if callee == nil {
		return
	}

	var fn string
	switch callee.Type() {
	case "identifier":
		fn = callee.Content(w.src)
	case "member_expression":
		prop := callee.ChildByFieldName("property")
		if prop == nil || prop.Type() != "property_identifier" {
			return
		}
		fn = prop.Content(w.src)
	default:
		return
	}
	if !networkCallNames[strings.ToLower(fn)] {
		return
	}

	args := n.ChildByFieldName("arguments")
	if args == nil || args.Type() != "arguments" {
		return
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		value, ok := w.stringValue(args.NamedChild(i))
		if !ok || len([]rune(value)) <= 1 || !looksLikePath(value) {
			continue
		}
		w.add(models.KindAPICallArgument, n, fmt.Sprintf("%s(%q)", fn, shorten(value)), resolveAgainst(w.base, value))
		return
	}
}
