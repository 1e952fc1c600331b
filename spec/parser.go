package spec

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	verr "github.com/nihei9/genfuzz/error"
)

// Parse reads a grammar source and returns its parsed RootNode. Like the
// dialect's lexer, the parser accumulates as many errors as it reasonably
// can instead of stopping at the first one, returning them together as a
// error.SpecErrors.
func Parse(src io.Reader) (*RootNode, error) {
	lx, err := newLexer(src)
	if err != nil {
		return nil, err
	}
	p := &parser{lx: lx}
	root := p.parseRoot()
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return root, nil
}

type parser struct {
	lx   *lexer
	errs verr.SpecErrors
}

func (p *parser) errorf(pos Position, cause error, detail string, args ...interface{}) {
	p.errs = append(p.errs, &verr.SpecError{
		Cause:  cause,
		Detail: fmt.Sprintf(detail, args...),
		Row:    pos.Row,
		Col:    pos.Col,
	})
}

// recoverToRuleBoundary discards tokens up to and including the next ';' (or
// EOF), so that one malformed rule doesn't cascade into spurious errors for
// every rule that follows it.
func (p *parser) recoverToRuleBoundary() {
	for {
		t, err := p.lx.next()
		if err != nil || t.kind == tokenKindEOF || t.kind == tokenKindSemi {
			return
		}
	}
}

func (p *parser) parseRoot() *RootNode {
	root := &RootNode{}

	if t, _ := p.lx.peek(); t != nil && t.kind == tokenKindKWGrammar {
		p.lx.next()
		name, err := p.expect(tokenKindID)
		if err != nil {
			p.errorf(name.pos, synErrExpectedGrammarName, "")
		} else {
			root.Name = name.text
		}
		if _, err := p.expect(tokenKindSemi); err != nil {
			p.errorf(name.pos, synErrNoSemicolon, "")
		}
	}

	for {
		t, err := p.lx.peek()
		if err != nil {
			p.errorf(Position{}, err, "")
			return root
		}
		switch t.kind {
		case tokenKindEOF:
			return root
		case tokenKindKWImport:
			p.lx.next()
			name, err := p.expect(tokenKindID)
			if err == nil {
				root.Imports = append(root.Imports, name.text)
			}
			p.expect(tokenKindSemi)
		default:
			rule := p.parseRule()
			if rule != nil {
				root.Rules = append(root.Rules, rule)
			}
		}
	}
}

func (p *parser) parseRule() *RuleNode {
	fragment := false
	if t, _ := p.lx.peek(); t != nil && t.kind == tokenKindKWFragment {
		p.lx.next()
		fragment = true
	}

	name, err := p.expect(tokenKindID)
	if err != nil {
		p.errorf(name.pos, synErrNoRuleName, "")
		p.recoverToRuleBoundary()
		return nil
	}

	rule := &RuleNode{
		Name:     name.text,
		IsLexer:  isLexerRuleName(name.text),
		Fragment: fragment,
		Pos:      name.pos,
	}

	if _, err := p.expect(tokenKindColon); err != nil {
		p.errorf(name.pos, synErrNoColon, "rule %q", name.text)
		p.recoverToRuleBoundary()
		return rule
	}

	for {
		alt := p.parseAlternative()
		rule.Alts = append(rule.Alts, alt)

		t, _ := p.lx.peek()
		if t != nil && t.kind == tokenKindOr {
			p.lx.next()
			continue
		}
		break
	}

	if _, err := p.expect(tokenKindSemi); err != nil {
		p.errorf(name.pos, synErrNoSemicolon, "rule %q", name.text)
		p.recoverToRuleBoundary()
	}

	return rule
}

func isLexerRuleName(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func (p *parser) parseAlternative() *AlternativeNode {
	alt := &AlternativeNode{}

	if t, _ := p.lx.peek(); t != nil && t.kind == tokenKindAction {
		// A leading bare action is interpreted as a weight/condition marker
		// (§4.3 AlternationNode condition vector) rather than an element.
		nt, _ := p.lx.next()
		alt.Weight = nt.text
		alt.Pos = nt.pos
	}

	for {
		t, err := p.lx.peek()
		if err != nil || t == nil {
			break
		}
		switch t.kind {
		case tokenKindOr, tokenKindSemi, tokenKindRParen, tokenKindEOF, tokenKindPound:
			goto done
		}
		if alt.Pos == (Position{}) {
			alt.Pos = t.pos
		}
		elem := p.parseElement()
		if elem == nil {
			break
		}
		alt.Elements = append(alt.Elements, elem)
	}
done:

	if t, _ := p.lx.peek(); t != nil && t.kind == tokenKindPound {
		p.lx.next()
		label, err := p.expect(tokenKindID)
		if err != nil {
			p.errorf(label.pos, synErrExpectedLabel, "")
		} else {
			alt.Label = label.text
		}
	}

	return alt
}

func (p *parser) parseElement() *ElementNode {
	t, err := p.lx.next()
	if err != nil {
		p.errorf(Position{}, err, "")
		return nil
	}

	var elem *ElementNode
	switch t.kind {
	case tokenKindID:
		elem = &ElementNode{Kind: ElemRuleRef, Name: t.text, Pos: t.pos}
		if nt, _ := p.lx.peek(); nt != nil && nt.kind == tokenKindLParen {
			p.lx.next()
			elem.Args = p.parseArgs()
		}
		if nt, _ := p.lx.peek(); nt != nil && (nt.kind == tokenKindEquals || nt.kind == tokenKindPlusEquals) {
			// This was actually a label, e.g. `x=expr` or `xs+=expr`; the
			// identifier just consumed is the label, and a fresh element
			// follows.
			listLabel := nt.kind == tokenKindPlusEquals
			p.lx.next()
			inner := p.parseElement()
			if inner == nil {
				return nil
			}
			inner.Label = t.text
			inner.ListLabel = listLabel
			return p.parseQuantifier(inner)
		}
	case tokenKindString:
		elem = &ElementNode{Kind: ElemLiteral, Literal: t.text, Pos: t.pos}
	case tokenKindCharset:
		neg := false
		text := t.text
		if strings.HasPrefix(text, "^") {
			neg = true
			text = text[1:]
		}
		elem = &ElementNode{Kind: ElemCharset, Charset: text, CharsetNeg: neg, Pos: t.pos}
	case tokenKindDot:
		elem = &ElementNode{Kind: ElemWildcard, Pos: t.pos}
	case tokenKindAction:
		isPred := false
		if nt, _ := p.lx.peek(); nt != nil && nt.kind == tokenKindQuestion {
			p.lx.next()
			isPred = true
		}
		elem = &ElementNode{Kind: ElemAction, Action: t.text, IsPredicate: isPred, Pos: t.pos}
		return elem // actions/predicates are never quantified
	case tokenKindLParen:
		group := p.parseGroup()
		elem = &ElementNode{Kind: ElemGroup, Group: group, Pos: t.pos}
	default:
		p.errorf(t.pos, synErrInvalidToken, "unexpected %v", t)
		return nil
	}

	return p.parseQuantifier(elem)
}

func (p *parser) parseQuantifier(elem *ElementNode) *ElementNode {
	t, _ := p.lx.peek()
	if t == nil {
		return elem
	}
	switch t.kind {
	case tokenKindQuestion, tokenKindStar, tokenKindPlus:
		p.lx.next()
		elem.Quantifier = string(t.kind)
	}
	return elem
}

func (p *parser) parseArgs() []*ArgNode {
	var args []*ArgNode
	for {
		t, _ := p.lx.peek()
		if t == nil || t.kind == tokenKindRParen {
			break
		}
		key, err := p.expect(tokenKindID)
		if err != nil {
			break
		}
		if _, err := p.expect(tokenKindEquals); err != nil {
			p.errorf(key.pos, synErrExpectedID, "expected '=' after argument name %q", key.text)
			break
		}
		val, err := p.lx.next()
		if err != nil {
			break
		}
		args = append(args, &ArgNode{Key: key.text, Value: val.text})

		nt, _ := p.lx.peek()
		if nt != nil && nt.kind == tokenKindComma {
			p.lx.next()
			continue
		}
		break
	}
	if _, err := p.expect(tokenKindRParen); err != nil {
		p.errorf(Position{}, synErrExpectedRParen, "")
	}
	return args
}

func (p *parser) parseGroup() []*AlternativeNode {
	var alts []*AlternativeNode
	for {
		alts = append(alts, p.parseAlternative())
		t, _ := p.lx.peek()
		if t != nil && t.kind == tokenKindOr {
			p.lx.next()
			continue
		}
		break
	}
	if _, err := p.expect(tokenKindRParen); err != nil {
		p.errorf(Position{}, synErrExpectedRParen, "")
	}
	return alts
}

func (p *parser) expect(kind tokenKind) (*token, error) {
	t, err := p.lx.peek()
	if err != nil {
		return &token{}, err
	}
	if t.kind != kind {
		return t, fmt.Errorf("expected %v, found %v", kind, t)
	}
	return p.lx.next()
}
