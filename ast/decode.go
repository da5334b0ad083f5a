package ast

import (
	"encoding/json"

	"github.com/stibium-lang/stibium/errors"
	"github.com/stibium-lang/stibium/types"
)

// DecodeModule reads the interchange form the front end hands over:
// JSON with a "kind" discriminator on every statement, expression and
// type node. Unknown kinds and missing annotations are reported as
// malformed input, never guessed at.
func DecodeModule(data []byte) (*Module, error) {
	var raw struct {
		Name    string            `json:"name"`
		Funcs   []json.RawMessage `json:"funcs"`
		Structs []json.RawMessage `json:"structs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Malformedf(types.Span{}, "module is not valid interchange JSON: %v", err)
	}

	mod := &Module{Name: raw.Name}
	for _, f := range raw.Funcs {
		fn, err := decodeFunction(f)
		if err != nil {
			return nil, err
		}
		mod.Funcs = append(mod.Funcs, fn)
	}
	for _, s := range raw.Structs {
		st, err := decodeStruct(s)
		if err != nil {
			return nil, err
		}
		mod.Structs = append(mod.Structs, st)
	}
	return mod, nil
}

type rawSpan struct {
	From rawPos `json:"from"`
	To   rawPos `json:"to"`
}

type rawPos struct {
	Line int    `json:"line"`
	Col  int    `json:"col"`
	File string `json:"file"`
}

func (s rawSpan) span() types.Span {
	return types.Span{
		From: types.Position{Line: s.From.Line, Column: s.From.Col, Filename: s.From.File},
		To:   types.Position{Line: s.To.Line, Column: s.To.Col, Filename: s.To.File},
	}
}

type rawParam struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

func decodeFunction(data json.RawMessage) (Function, error) {
	var raw struct {
		Name   string          `json:"name"`
		Params []rawParam      `json:"params"`
		Ret    json.RawMessage `json:"ret"`
		Body   json.RawMessage `json:"body"`
		Span   rawSpan         `json:"span"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Function{}, errors.Malformedf(types.Span{}, "bad function node: %v", err)
	}
	fn := Function{Name: raw.Name, Pos: raw.Span.span()}
	for _, p := range raw.Params {
		t, err := decodeType(p.Type, fn.Pos)
		if err != nil {
			return Function{}, err
		}
		fn.Params = append(fn.Params, Param{Name: p.Name, Type: t})
	}
	if len(raw.Ret) > 0 && string(raw.Ret) != "null" {
		t, err := decodeType(raw.Ret, fn.Pos)
		if err != nil {
			return Function{}, err
		}
		fn.Ret = t
	}
	body, err := decodeBlock(raw.Body, fn.Pos)
	if err != nil {
		return Function{}, err
	}
	fn.Body = body
	return fn, nil
}

func decodeStruct(data json.RawMessage) (StructDef, error) {
	var raw struct {
		Name    string            `json:"name"`
		Fields  []rawParam        `json:"fields"`
		Methods []json.RawMessage `json:"methods"`
		Span    rawSpan           `json:"span"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return StructDef{}, errors.Malformedf(types.Span{}, "bad struct node: %v", err)
	}
	st := StructDef{Name: raw.Name, Pos: raw.Span.span()}
	for _, f := range raw.Fields {
		t, err := decodeType(f.Type, st.Pos)
		if err != nil {
			return StructDef{}, err
		}
		st.Fields = append(st.Fields, Field{Name: f.Name, Type: t})
	}
	for _, m := range raw.Methods {
		fn, err := decodeFunction(m)
		if err != nil {
			return StructDef{}, err
		}
		st.Methods = append(st.Methods, fn)
	}
	return st, nil
}

func decodeType(data json.RawMessage, at types.Span) (types.Type, error) {
	var raw struct {
		Kind string          `json:"kind"`
		Bits int             `json:"bits"`
		Elem json.RawMessage `json:"elem"`
		Len  int             `json:"len"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Malformedf(at, "bad type node: %v", err)
	}
	switch raw.Kind {
	case "int":
		bits := raw.Bits
		if bits == 0 {
			bits = 64
		}
		return types.Int{Bits: bits}, nil
	case "bool":
		return types.Bool{}, nil
	case "str":
		return types.Str{}, nil
	case "any":
		return types.Any{}, nil
	case "array":
		elem, err := decodeType(raw.Elem, at)
		if err != nil {
			return nil, err
		}
		return types.Array{Elem: elem, Len: raw.Len}, nil
	case "named":
		return types.Named{Name: raw.Name}, nil
	default:
		return nil, errors.Malformedf(at, "unknown type kind %q", raw.Kind)
	}
}

// optionalType decodes a type that may be absent (null or missing).
func optionalType(data json.RawMessage, at types.Span) (types.Type, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	return decodeType(data, at)
}

func decodeBlock(data json.RawMessage, at types.Span) (Block, error) {
	s, err := decodeStatement(data)
	if err != nil {
		return Block{}, err
	}
	b, ok := s.(Block)
	if !ok {
		return Block{}, errors.Malformedf(at, "expected a block node, got %T", s)
	}
	return b, nil
}

func decodeStatement(data json.RawMessage) (Statement, error) {
	var raw struct {
		Kind string  `json:"kind"`
		Span rawSpan `json:"span"`

		Name       string            `json:"name"`
		Type       json.RawMessage   `json:"type"`
		Value      json.RawMessage   `json:"value"`
		Target     json.RawMessage   `json:"target"`
		Condition  json.RawMessage   `json:"condition"`
		Then       json.RawMessage   `json:"then"`
		Else       json.RawMessage   `json:"else"`
		Subject    json.RawMessage   `json:"subject"`
		Arms       []json.RawMessage `json:"arms"`
		Ident      string            `json:"ident"`
		Collection json.RawMessage   `json:"collection"`
		CollType   json.RawMessage   `json:"coll_type"`
		Body       json.RawMessage   `json:"body"`
		Statements []json.RawMessage `json:"statements"`
		Expr       json.RawMessage   `json:"expr"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Malformedf(types.Span{}, "bad statement node: %v", err)
	}
	pos := raw.Span.span()

	switch raw.Kind {
	case "block":
		b := Block{Pos: pos}
		for _, s := range raw.Statements {
			stmt, err := decodeStatement(s)
			if err != nil {
				return nil, err
			}
			b.Statements = append(b.Statements, stmt)
		}
		return b, nil
	case "declare":
		t, err := optionalType(raw.Type, pos)
		if err != nil {
			return nil, err
		}
		var value Expression
		if len(raw.Value) > 0 && string(raw.Value) != "null" {
			value, err = decodeExpression(raw.Value)
			if err != nil {
				return nil, err
			}
		}
		return Declare{Name: raw.Name, Type: t, Value: value, Pos: pos}, nil
	case "assign":
		target, err := decodeExpression(raw.Target)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpression(raw.Value)
		if err != nil {
			return nil, err
		}
		return Assign{Target: target, Value: value, Pos: pos}, nil
	case "if":
		cond, err := decodeExpression(raw.Condition)
		if err != nil {
			return nil, err
		}
		then, err := decodeBlock(raw.Then, pos)
		if err != nil {
			return nil, err
		}
		var els Statement
		if len(raw.Else) > 0 && string(raw.Else) != "null" {
			els, err = decodeStatement(raw.Else)
			if err != nil {
				return nil, err
			}
		}
		return If{Condition: cond, Then: then, Else: els, Pos: pos}, nil
	case "match":
		return decodeMatch(raw.Subject, raw.Arms, raw.Else, pos)
	case "while":
		cond, err := decodeExpression(raw.Condition)
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(raw.Body, pos)
		if err != nil {
			return nil, err
		}
		return While{Condition: cond, Body: body, Pos: pos}, nil
	case "for":
		coll, err := decodeExpression(raw.Collection)
		if err != nil {
			return nil, err
		}
		collType, err := optionalType(raw.CollType, pos)
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(raw.Body, pos)
		if err != nil {
			return nil, err
		}
		return For{Ident: raw.Ident, Collection: coll, CollType: collType, Body: body, Pos: pos}, nil
	case "break":
		return Break{Pos: pos}, nil
	case "continue":
		return Continue{Pos: pos}, nil
	case "return":
		var value Expression
		if len(raw.Value) > 0 && string(raw.Value) != "null" {
			var err error
			value, err = decodeExpression(raw.Value)
			if err != nil {
				return nil, err
			}
		}
		return Return{Value: value, Pos: pos}, nil
	case "expr":
		e, err := decodeExpression(raw.Expr)
		if err != nil {
			return nil, err
		}
		return ExprStmt{Expr: e, Pos: pos}, nil
	default:
		return nil, errors.Malformedf(pos, "unknown statement kind %q", raw.Kind)
	}
}

func decodeMatch(subject json.RawMessage, arms []json.RawMessage, els json.RawMessage, pos types.Span) (Statement, error) {
	subj, err := decodeExpression(subject)
	if err != nil {
		return nil, err
	}
	m := Match{Subject: subj, Pos: pos}
	for _, a := range arms {
		var raw struct {
			Pattern json.RawMessage `json:"pattern"`
			Body    json.RawMessage `json:"body"`
			Span    rawSpan         `json:"span"`
		}
		if err := json.Unmarshal(a, &raw); err != nil {
			return nil, errors.Malformedf(pos, "bad match arm: %v", err)
		}
		arm := MatchArm{Pos: raw.Span.span()}
		if len(raw.Pattern) > 0 && string(raw.Pattern) != "null" {
			arm.Pattern, err = decodeExpression(raw.Pattern)
			if err != nil {
				return nil, err
			}
		}
		arm.Body, err = decodeBlock(raw.Body, arm.Pos)
		if err != nil {
			return nil, err
		}
		m.Arms = append(m.Arms, arm)
	}
	if len(els) > 0 && string(els) != "null" {
		b, err := decodeBlock(els, pos)
		if err != nil {
			return nil, err
		}
		m.Else = &b
	}
	return m, nil
}

func decodeExpression(data json.RawMessage) (Expression, error) {
	var raw struct {
		Kind string  `json:"kind"`
		Span rawSpan `json:"span"`

		Value    json.RawMessage   `json:"value"`
		Name     string            `json:"name"`
		Op       string            `json:"op"`
		Left     json.RawMessage   `json:"left"`
		Right    json.RawMessage   `json:"right"`
		Expr     json.RawMessage   `json:"expr"`
		Func     string            `json:"func"`
		Recv     json.RawMessage   `json:"recv"`
		Method   string            `json:"method"`
		Args     []json.RawMessage `json:"args"`
		Ret      json.RawMessage   `json:"ret"`
		Field    string            `json:"field"`
		Index    json.RawMessage   `json:"index"`
		Fields   []json.RawMessage `json:"fields"`
		Capacity int               `json:"capacity"`
		Elems    []json.RawMessage `json:"elems"`
		Subject  json.RawMessage   `json:"subject"`
		Arms     []json.RawMessage `json:"arms"`
		Else     json.RawMessage   `json:"else"`
		Type     json.RawMessage   `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Malformedf(types.Span{}, "bad expression node: %v", err)
	}
	pos := raw.Span.span()

	switch raw.Kind {
	case "int":
		var v int64
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, errors.Malformedf(pos, "bad integer literal: %v", err)
		}
		return IntLit{Value: v, Pos: pos}, nil
	case "str":
		var v string
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, errors.Malformedf(pos, "bad string literal: %v", err)
		}
		return StrLit{Value: v, Pos: pos}, nil
	case "bool":
		var v bool
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, errors.Malformedf(pos, "bad boolean literal: %v", err)
		}
		return BoolLit{Value: v, Pos: pos}, nil
	case "self":
		return SelfRef{Pos: pos}, nil
	case "var":
		return VarRef{Name: raw.Name, Pos: pos}, nil
	case "binary":
		op, ok := binOpFromString(raw.Op)
		if !ok {
			return nil, errors.Malformedf(pos, "unknown operator %q", raw.Op)
		}
		left, err := decodeExpression(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpression(raw.Right)
		if err != nil {
			return nil, err
		}
		return Binary{Op: op, Left: left, Right: right, Pos: pos}, nil
	case "unary":
		var op types.UnaryOp
		switch raw.Op {
		case "-":
			op = types.Negate
		case "!":
			op = types.Not
		default:
			return nil, errors.Malformedf(pos, "unknown operator %q", raw.Op)
		}
		inner, err := decodeExpression(raw.Expr)
		if err != nil {
			return nil, err
		}
		return Unary{Op: op, Expr: inner, Pos: pos}, nil
	case "call":
		args, err := decodeExpressions(raw.Args)
		if err != nil {
			return nil, err
		}
		ret, err := optionalType(raw.Ret, pos)
		if err != nil {
			return nil, err
		}
		return Call{Func: raw.Func, Args: args, Ret: ret, Pos: pos}, nil
	case "method_call":
		recv, err := decodeExpression(raw.Recv)
		if err != nil {
			return nil, err
		}
		args, err := decodeExpressions(raw.Args)
		if err != nil {
			return nil, err
		}
		ret, err := optionalType(raw.Ret, pos)
		if err != nil {
			return nil, err
		}
		return MethodCall{Recv: recv, Method: raw.Method, Args: args, Ret: ret, Pos: pos}, nil
	case "field":
		inner, err := decodeExpression(raw.Expr)
		if err != nil {
			return nil, err
		}
		return FieldAccess{Expr: inner, Field: raw.Field, Pos: pos}, nil
	case "index":
		inner, err := decodeExpression(raw.Expr)
		if err != nil {
			return nil, err
		}
		idx, err := decodeExpression(raw.Index)
		if err != nil {
			return nil, err
		}
		return Index{Expr: inner, Index: idx, Pos: pos}, nil
	case "struct_lit":
		lit := StructLit{Name: raw.Name, Pos: pos}
		for _, f := range raw.Fields {
			var rawField struct {
				Name  string          `json:"name"`
				Value json.RawMessage `json:"value"`
			}
			if err := json.Unmarshal(f, &rawField); err != nil {
				return nil, errors.Malformedf(pos, "bad field initializer: %v", err)
			}
			v, err := decodeExpression(rawField.Value)
			if err != nil {
				return nil, err
			}
			lit.Fields = append(lit.Fields, FieldInit{Name: rawField.Name, Value: v})
		}
		return lit, nil
	case "array_lit":
		elems, err := decodeExpressions(raw.Elems)
		if err != nil {
			return nil, err
		}
		return ArrayLit{Capacity: raw.Capacity, Elems: elems, Pos: pos}, nil
	case "match":
		return decodeMatchExpr(raw.Subject, raw.Arms, raw.Else, raw.Type, pos)
	default:
		return nil, errors.Malformedf(pos, "unknown expression kind %q", raw.Kind)
	}
}

func decodeExpressions(raws []json.RawMessage) ([]Expression, error) {
	out := make([]Expression, 0, len(raws))
	for _, r := range raws {
		e, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeMatchExpr(subject json.RawMessage, arms []json.RawMessage, els, typ json.RawMessage, pos types.Span) (Expression, error) {
	subj, err := decodeExpression(subject)
	if err != nil {
		return nil, err
	}
	m := MatchExpr{Subject: subj, Pos: pos}
	m.Type, err = optionalType(typ, pos)
	if err != nil {
		return nil, err
	}
	for _, a := range arms {
		var raw struct {
			Pattern json.RawMessage `json:"pattern"`
			Value   json.RawMessage `json:"value"`
			Span    rawSpan         `json:"span"`
		}
		if err := json.Unmarshal(a, &raw); err != nil {
			return nil, errors.Malformedf(pos, "bad match arm: %v", err)
		}
		arm := MatchExprArm{Pos: raw.Span.span()}
		if len(raw.Pattern) > 0 && string(raw.Pattern) != "null" {
			arm.Pattern, err = decodeExpression(raw.Pattern)
			if err != nil {
				return nil, err
			}
		}
		arm.Value, err = decodeExpression(raw.Value)
		if err != nil {
			return nil, err
		}
		m.Arms = append(m.Arms, arm)
	}
	if len(els) > 0 && string(els) != "null" {
		m.Else, err = decodeExpression(els)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func binOpFromString(s string) (types.BinOp, bool) {
	for op := types.Addition; op <= types.DivideAssign; op++ {
		if op.String() == s {
			return op, true
		}
	}
	return 0, false
}
