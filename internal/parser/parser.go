// Package parser builds an internal/ast.Program from a Pyra token stream
// using recursive descent with explicit precedence climbing. It follows a
// first-error-wins strategy: there is no panic-mode recovery, the first
// malformed construct stops the parse.
package parser

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"pyra-compiler/internal/ast"
	"pyra-compiler/internal/lexer"
	"pyra-compiler/pkg/utils"
)

var log = logrus.WithField("stage", "parser")

// Error is a parse failure at a specific span.
type Error struct {
	Span    ast.Span
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Span.Start, e.Span.End, e.Message)
}

type parser struct {
	toks []lexer.Token
	pos  int
	err  error
}

// Parse lexes src and parses it into a Program. It returns the first
// error encountered, lexical or syntactic.
func Parse(src string) (*ast.Program, error) {
	toks := lexer.Tokens(src)
	for _, t := range toks {
		if t.Type.IsError() {
			return nil, utils.Wrap(&Error{Span: t.Span, Message: "lexical error: " + t.Type.String() + " (" + t.Text + ")"}, "lex")
		}
	}
	p := &parser{toks: toks}
	prog := p.parseProgram()
	if p.err != nil {
		return nil, p.err
	}
	log.Debugf("parsed %d items", len(prog.Items))
	return prog, nil
}

func (p *parser) fail(span ast.Span, format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	p.err = &Error{Span: span, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) peek() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.toks[idx]
}

func (p *parser) advance() lexer.Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) check(t lexer.Type) bool {
	return p.peek().Type == t
}

func (p *parser) match(t lexer.Type) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(t lexer.Type) lexer.Token {
	if !p.check(t) {
		tok := p.peek()
		p.fail(tok.Span, "expected %s, found %s", t, tok.Type)
		return tok
	}
	return p.advance()
}

func (p *parser) skipNewlines() {
	for p.check(lexer.Newline) {
		p.advance()
	}
}

func (p *parser) ok() bool { return p.err == nil }

// ---- program / items ----

func (p *parser) parseProgram() *ast.Program {
	start := p.peek().Span
	prog := &ast.Program{}
	p.skipNewlines()
	for p.ok() && !p.check(lexer.EOF) {
		item := p.parseItem()
		if !p.ok() {
			break
		}
		prog.Items = append(prog.Items, item)
		p.skipNewlines()
	}
	end := p.peek().Span
	prog.Span = ast.Span{Start: start.Start, End: end.End}
	return prog
}

func (p *parser) parseItem() ast.Item {
	switch p.peek().Type {
	case lexer.Def:
		return p.parseFunction()
	case lexer.Struct:
		return p.parseStructDef()
	case lexer.Const:
		return p.parseConstDecl()
	case lexer.Event:
		return p.parseEventDef()
	default:
		tok := p.peek()
		p.fail(tok.Span, "expected a top-level item (def/struct/const/event), found %s", tok.Type)
		return nil
	}
}

func (p *parser) parseFunction() *ast.Function {
	start := p.expect(lexer.Def).Span
	name := p.expect(lexer.Identifier).Str
	p.expect(lexer.LParen)
	var params []ast.Parameter
	for p.ok() && !p.check(lexer.RParen) {
		params = append(params, p.parseParameter())
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RParen)
	var ret *ast.Type
	if p.match(lexer.Arrow) {
		t := p.parseType()
		ret = &t
	}
	p.expect(lexer.Colon)
	body := p.parseSuite()
	return &ast.Function{Name: name, Params: params, ReturnType: ret, Body: body, Span: ast.Span{Start: start.Start, End: p.peek().Span.Start}}
}

func (p *parser) parseParameter() ast.Parameter {
	start := p.peek().Span
	name := p.expect(lexer.Identifier).Str
	p.expect(lexer.Colon)
	typ := p.parseType()
	return ast.Parameter{Name: name, Type: typ, Span: start}
}

func (p *parser) parseType() ast.Type {
	tok := p.advance()
	switch tok.Type {
	case lexer.KwUint8:
		return ast.Uint8
	case lexer.KwUint256:
		return ast.Uint256
	case lexer.KwInt256:
		return ast.Int256
	case lexer.KwBool:
		return ast.Bool
	case lexer.KwAddress:
		return ast.Address
	case lexer.KwBytes:
		return ast.Bytes
	case lexer.KwString:
		return ast.String
	case lexer.Identifier:
		return ast.Custom(tok.Str)
	default:
		p.fail(tok.Span, "expected a type, found %s", tok.Type)
		return ast.Uint256
	}
}

func (p *parser) parseStructDef() *ast.StructDef {
	start := p.expect(lexer.Struct).Span
	name := p.expect(lexer.Identifier).Str
	p.expect(lexer.Colon)
	p.expect(lexer.Newline)
	p.expect(lexer.Indent)
	var fields []ast.StructField
	for p.ok() && !p.check(lexer.Dedent) {
		p.skipNewlines()
		if p.check(lexer.Dedent) {
			break
		}
		fs := p.peek().Span
		fname := p.expect(lexer.Identifier).Str
		p.expect(lexer.Colon)
		ftyp := p.parseType()
		fields = append(fields, ast.StructField{Name: fname, Type: ftyp, Span: fs})
		if !p.check(lexer.Dedent) {
			p.expect(lexer.Newline)
		}
		p.skipNewlines()
	}
	p.expect(lexer.Dedent)
	return &ast.StructDef{Name: name, Fields: fields, Span: start}
}

func (p *parser) parseConstDecl() *ast.ConstDecl {
	start := p.expect(lexer.Const).Span
	name := p.expect(lexer.Identifier).Str
	p.expect(lexer.Colon)
	typ := p.parseType()
	p.expect(lexer.Assign)
	val := p.parseExpression()
	return &ast.ConstDecl{Name: name, Type: typ, Value: val, Span: start}
}

func (p *parser) parseEventDef() *ast.EventDef {
	start := p.expect(lexer.Event).Span
	name := p.expect(lexer.Identifier).Str
	p.expect(lexer.LParen)
	var params []ast.Parameter
	for p.ok() && !p.check(lexer.RParen) {
		params = append(params, p.parseParameter())
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RParen)
	return &ast.EventDef{Name: name, Params: params, Span: start}
}

// ---- suites / statements ----

// parseSuite implements the single-inline-statement-or-indented-block rule
// shared by functions, if/elif/else, for and while.
func (p *parser) parseSuite() ast.Block {
	if p.check(lexer.Newline) {
		start := p.peek().Span
		p.advance()
		p.expect(lexer.Indent)
		var stmts []ast.Statement
		for p.ok() && !p.check(lexer.Dedent) {
			p.skipNewlines()
			if p.check(lexer.Dedent) {
				break
			}
			stmts = append(stmts, p.parseStatement())
			p.skipNewlines()
		}
		end := p.peek().Span
		p.expect(lexer.Dedent)
		return ast.Block{Statements: stmts, Span: ast.Span{Start: start.Start, End: end.End}}
	}
	stmt := p.parseStatement()
	return ast.Block{Statements: []ast.Statement{stmt}, Span: stmt_span(stmt)}
}

func stmt_span(s ast.Statement) ast.Span {
	switch n := s.(type) {
	case *ast.LetStatement:
		return n.Span
	case *ast.AssignStatement:
		return n.Span
	case *ast.ExpressionStatement:
		return n.Span
	case *ast.IfStatement:
		return n.Span
	case *ast.ForStatement:
		return n.Span
	case *ast.WhileStatement:
		return n.Span
	case *ast.ReturnStatement:
		return n.Span
	case *ast.RequireStatement:
		return n.Span
	case *ast.EmitStatement:
		return n.Span
	default:
		return ast.Span{}
	}
}

func (p *parser) parseStatement() ast.Statement {
	switch p.peek().Type {
	case lexer.Let:
		return p.parseLet()
	case lexer.If:
		return p.parseIf()
	case lexer.For:
		return p.parseFor()
	case lexer.While:
		return p.parseWhile()
	case lexer.Return:
		return p.parseReturn()
	case lexer.Require:
		return p.parseRequire()
	case lexer.Emit:
		return p.parseEmit()
	default:
		return p.parseExprOrAssign()
	}
}

func (p *parser) parseLet() *ast.LetStatement {
	start := p.expect(lexer.Let).Span
	mutable := p.match(lexer.Mut)
	name := p.expect(lexer.Identifier).Str
	var typ *ast.Type
	if p.match(lexer.Colon) {
		t := p.parseType()
		typ = &t
	}
	var val ast.Expression
	if p.match(lexer.Assign) {
		val = p.parseExpression()
	}
	return &ast.LetStatement{Name: name, Type: typ, Value: val, Mutable: mutable, Span: start}
}

func (p *parser) parseIf() *ast.IfStatement {
	start := p.expect(lexer.If).Span
	cond := p.parseExpression()
	p.expect(lexer.Colon)
	then := p.parseSuite()
	stmt := &ast.IfStatement{Condition: cond, Then: then, Span: start}
	if p.check(lexer.Elif) {
		elifSpan := p.peek().Span
		p.toks[p.pos] = lexer.Token{Type: lexer.If, Text: "if", Span: elifSpan}
		nested := p.parseIf()
		stmt.Else = &ast.Block{Statements: []ast.Statement{nested}, Span: nested.Span}
	} else if p.match(lexer.Else) {
		p.expect(lexer.Colon)
		elseBlock := p.parseSuite()
		stmt.Else = &elseBlock
	}
	return stmt
}

func (p *parser) parseFor() *ast.ForStatement {
	start := p.expect(lexer.For).Span
	name := p.expect(lexer.Identifier).Str
	p.expect(lexer.In)
	iter := p.parseExpression()
	p.expect(lexer.Colon)
	body := p.parseSuite()
	return &ast.ForStatement{Var: name, Iterable: iter, Body: body, Span: start}
}

func (p *parser) parseWhile() *ast.WhileStatement {
	start := p.expect(lexer.While).Span
	cond := p.parseExpression()
	p.expect(lexer.Colon)
	body := p.parseSuite()
	return &ast.WhileStatement{Condition: cond, Body: body, Span: start}
}

func (p *parser) parseReturn() *ast.ReturnStatement {
	start := p.expect(lexer.Return).Span
	var val ast.Expression
	if !p.atStatementEnd() {
		val = p.parseExpression()
	}
	return &ast.ReturnStatement{Value: val, Span: start}
}

func (p *parser) parseRequire() *ast.RequireStatement {
	start := p.expect(lexer.Require).Span
	cond := p.parseExpression()
	return &ast.RequireStatement{Condition: cond, Span: start}
}

func (p *parser) parseEmit() *ast.EmitStatement {
	start := p.expect(lexer.Emit).Span
	name := p.expect(lexer.Identifier).Str
	p.expect(lexer.LParen)
	var args []ast.Expression
	for p.ok() && !p.check(lexer.RParen) {
		args = append(args, p.parseExpression())
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RParen)
	return &ast.EmitStatement{Event: name, Args: args, Span: start}
}

func (p *parser) atStatementEnd() bool {
	switch p.peek().Type {
	case lexer.Newline, lexer.Dedent, lexer.EOF:
		return true
	default:
		return false
	}
}

func (p *parser) parseExprOrAssign() ast.Statement {
	start := p.peek().Span
	lhs := p.parseExpression()
	var op *ast.BinaryOp
	switch p.peek().Type {
	case lexer.Assign:
		p.advance()
		rhs := p.parseExpression()
		p.validateAssignTarget(lhs)
		return &ast.AssignStatement{Target: lhs, Value: rhs, Span: start}
	case lexer.PlusAssign:
		o := ast.OpAdd
		op = &o
	case lexer.MinusAssign:
		o := ast.OpSub
		op = &o
	case lexer.StarAssign:
		o := ast.OpMul
		op = &o
	case lexer.SlashAssign:
		o := ast.OpDiv
		op = &o
	}
	if op != nil {
		p.advance()
		rhs := p.parseExpression()
		p.validateAssignTarget(lhs)
		desugared := &ast.BinaryExpr{Op: *op, Left: lhs, Right: rhs, Span: start}
		return &ast.AssignStatement{Target: lhs, Value: desugared, Span: start}
	}
	return &ast.ExpressionStatement{Expr: lhs, Span: start}
}

func (p *parser) validateAssignTarget(e ast.Expression) {
	switch n := e.(type) {
	case *ast.Identifier:
		return
	case *ast.MemberExpr:
		p.validateAssignTarget(n.Base)
	case *ast.IndexExpr:
		p.validateAssignTarget(n.Base)
	default:
		p.fail(e.SpanOf(), "invalid assignment target")
	}
}

// ---- expressions: or -> and -> comparison -> additive -> multiplicative
// -> unary -> power -> postfix -> primary ----

func (p *parser) parseExpression() ast.Expression {
	return p.parseOr()
}

func (p *parser) parseOr() ast.Expression {
	left := p.parseAnd()
	for p.check(lexer.Or) {
		span := p.advance().Span
		right := p.parseAnd()
		left = &ast.BinaryExpr{Op: ast.OpOr, Left: left, Right: right, Span: span}
	}
	return left
}

func (p *parser) parseAnd() ast.Expression {
	left := p.parseComparison()
	for p.check(lexer.And) {
		span := p.advance().Span
		right := p.parseComparison()
		left = &ast.BinaryExpr{Op: ast.OpAnd, Left: left, Right: right, Span: span}
	}
	return left
}

func (p *parser) parseComparison() ast.Expression {
	left := p.parseAdditive()
	for {
		var op ast.BinaryOp
		switch p.peek().Type {
		case lexer.Equal:
			op = ast.OpEqual
		case lexer.NotEqual:
			op = ast.OpNotEqual
		case lexer.Less:
			op = ast.OpLess
		case lexer.Greater:
			op = ast.OpGreater
		case lexer.LessEqual:
			op = ast.OpLessEqual
		case lexer.GreaterEqual:
			op = ast.OpGreaterEqual
		default:
			return left
		}
		span := p.advance().Span
		right := p.parseAdditive()
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: span}
	}
}

func (p *parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for {
		var op ast.BinaryOp
		switch p.peek().Type {
		case lexer.Plus:
			op = ast.OpAdd
		case lexer.Minus:
			op = ast.OpSub
		default:
			return left
		}
		span := p.advance().Span
		right := p.parseMultiplicative()
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: span}
	}
}

func (p *parser) parseMultiplicative() ast.Expression {
	left := p.parseUnary()
	for {
		var op ast.BinaryOp
		switch p.peek().Type {
		case lexer.Star:
			op = ast.OpMul
		case lexer.Slash:
			op = ast.OpDiv
		case lexer.Percent:
			op = ast.OpMod
		default:
			return left
		}
		span := p.advance().Span
		right := p.parseUnary()
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: span}
	}
}

func (p *parser) parseUnary() ast.Expression {
	switch p.peek().Type {
	case lexer.Not:
		span := p.advance().Span
		operand := p.parseUnary()
		return &ast.UnaryExpr{Op: ast.OpNot, Operand: operand, Span: span}
	case lexer.Minus:
		span := p.advance().Span
		operand := p.parseUnary()
		return &ast.UnaryExpr{Op: ast.OpNeg, Operand: operand, Span: span}
	default:
		return p.parsePower()
	}
}

func (p *parser) parsePower() ast.Expression {
	left := p.parsePostfix()
	if p.check(lexer.StarStar) {
		span := p.advance().Span
		right := p.parseUnary()
		return &ast.BinaryExpr{Op: ast.OpPow, Left: left, Right: right, Span: span}
	}
	return left
}

func (p *parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()
	for {
		switch p.peek().Type {
		case lexer.Dot:
			p.advance()
			name := p.expect(lexer.Identifier).Str
			expr = &ast.MemberExpr{Base: expr, Name: name, Span: expr.SpanOf()}
		case lexer.LParen:
			p.advance()
			var args []ast.Expression
			for p.ok() && !p.check(lexer.RParen) {
				args = append(args, p.parseExpression())
				if !p.match(lexer.Comma) {
					break
				}
			}
			p.expect(lexer.RParen)
			expr = &ast.CallExpr{Callee: expr, Args: args, Span: expr.SpanOf()}
		case lexer.LBracket:
			p.advance()
			key := p.parseExpression()
			p.expect(lexer.RBracket)
			expr = &ast.IndexExpr{Base: expr, Key: key, Span: expr.SpanOf()}
		case lexer.LBrace:
			id, isIdent := expr.(*ast.Identifier)
			if !isIdent {
				return expr
			}
			expr = p.parseStructLitBody(id.Name, id.Span)
		default:
			return expr
		}
	}
}

func (p *parser) parseStructLitBody(name string, span ast.Span) ast.Expression {
	p.expect(lexer.LBrace)
	var fields []ast.StructLitField
	for p.ok() && !p.check(lexer.RBrace) {
		fname := p.expect(lexer.Identifier).Str
		p.expect(lexer.Colon)
		fval := p.parseExpression()
		fields = append(fields, ast.StructLitField{Name: fname, Value: fval})
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RBrace)
	return &ast.StructLit{Name: name, Fields: fields, Span: span}
}

func (p *parser) parsePrimary() ast.Expression {
	tok := p.peek()
	switch tok.Type {
	case lexer.Number:
		p.advance()
		return &ast.Number{Value: tok.Num, Span: tok.Span}
	case lexer.HexNumber:
		p.advance()
		return &ast.HexNumber{Value: tok.Num, Span: tok.Span}
	case lexer.StringLiteral:
		p.advance()
		return &ast.StringLit{Value: tok.Str, Span: tok.Span}
	case lexer.BytesLiteral:
		p.advance()
		return &ast.BytesLit{Value: tok.Bytes, Span: tok.Span}
	case lexer.True:
		p.advance()
		return &ast.BoolLit{Value: true, Span: tok.Span}
	case lexer.False:
		p.advance()
		return &ast.BoolLit{Value: false, Span: tok.Span}
	case lexer.Identifier:
		p.advance()
		return &ast.Identifier{Name: tok.Str, Span: tok.Span}
	case lexer.LParen:
		p.advance()
		inner := p.parseExpression()
		p.expect(lexer.RParen)
		return inner
	default:
		p.fail(tok.Span, "unexpected token %s in expression", tok.Type)
		return &ast.Identifier{Name: "", Span: tok.Span}
	}
}
