package kg

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Snapshots written before format v2 stored list columns as Python literals
// such as ['a', 'b'] or [('rank', 'species')]. parseLiteral accepts exactly
// that subset: lists, tuples and sets of quoted strings, bare numbers, the
// constants None/True/False/nan, and nested tuples. Anything else is an error.

type literal struct {
	scalar string
	isNull bool
	items  []literal
	isSeq  bool
}

func parseLiteral(s string) (literal, error) {
	p := &literalParser{src: s}
	v, err := p.value()
	if err != nil {
		return literal{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return literal{}, p.errorf("unexpected trailing input")
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrInvalidLiteral, p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) value() (literal, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return literal{}, p.errorf("unexpected end of input")
	}
	switch c := p.src[p.pos]; c {
	case '[':
		return p.sequence(']')
	case '(':
		return p.sequence(')')
	case '{':
		return p.sequence('}')
	case '\'', '"':
		s, err := p.quoted(c)
		return literal{scalar: s}, err
	default:
		return p.bare()
	}
}

func (p *literalParser) sequence(closer byte) (literal, error) {
	p.pos++ // opener
	out := literal{isSeq: true}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return literal{}, p.errorf("unterminated sequence")
		}
		if p.src[p.pos] == closer {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return literal{}, err
		}
		out.items = append(out.items, v)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return literal{}, p.errorf("unterminated sequence")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case closer:
		default:
			return literal{}, p.errorf("expected ',' or %q", closer)
		}
	}
}

func (p *literalParser) quoted(quote byte) (string, error) {
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errorf("dangling escape")
			}
			p.pos++
			switch e := p.src[p.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(e)
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
			p.pos++
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *literalParser) bare() (literal, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ',' || c == ']' || c == ')' || c == '}' || c == ' ' || c == '\t' {
			break
		}
		p.pos++
	}
	word := p.src[start:p.pos]
	switch word {
	case "":
		return literal{}, p.errorf("expected a value")
	case "None", "nan", "NaN":
		return literal{isNull: true}, nil
	case "True", "False":
		return literal{scalar: word}, nil
	}
	for i := 0; i < len(word); i++ {
		c := word[i]
		if (c < '0' || c > '9') && c != '.' && c != '-' && c != '+' && c != 'e' && c != 'E' {
			return literal{}, p.errorf("unsupported token %q", word)
		}
	}
	return literal{scalar: word}, nil
}

// literalStrings flattens a legacy list cell into its string elements,
// skipping nulls.
func literalStrings(cell string) ([]string, error) {
	v, err := parseLiteral(cell)
	if err != nil {
		return nil, err
	}
	if !v.isSeq {
		if v.isNull {
			return nil, nil
		}
		return []string{v.scalar}, nil
	}
	out := make([]string, 0, len(v.items))
	for _, item := range v.items {
		if item.isSeq {
			return nil, fmt.Errorf("%w: nested sequence in string list", ErrInvalidLiteral)
		}
		if !item.isNull {
			out = append(out, item.scalar)
		}
	}
	return out, nil
}

// literalPairs reads a legacy description cell: a sequence of two-element
// tuples.
func literalPairs(cell string) ([]Attribute, error) {
	v, err := parseLiteral(cell)
	if err != nil {
		return nil, err
	}
	if !v.isSeq {
		return nil, fmt.Errorf("%w: description is not a sequence", ErrInvalidLiteral)
	}
	out := make([]Attribute, 0, len(v.items))
	for _, item := range v.items {
		if !item.isSeq || len(item.items) != 2 {
			return nil, fmt.Errorf("%w: description entry is not a pair", ErrInvalidLiteral)
		}
		k, val := item.items[0], item.items[1]
		if k.isSeq || val.isSeq {
			return nil, fmt.Errorf("%w: nested description value", ErrInvalidLiteral)
		}
		out = append(out, Attribute{Key: k.scalar, Value: val.scalar})
	}
	return out, nil
}
