// Package parser implements the Parser collaborator interface spec.md §6
// names (Parser.parse_file). Structure is grounded in the teacher's
// internal/parser package: a cur/peek two-token lookahead, a Pratt
// expression parser keyed by registered prefix/infix functions, and
// structured parse errors carrying a span — generalized from AILANG's
// functional grammar to this spec's class/struct/enum/function surface.
package parser

import (
	"fmt"
	"strconv"

	"github.com/emberscript/emberc/internal/ident"
	"github.com/emberscript/emberc/internal/lang/ast"
	"github.com/emberscript/emberc/internal/lang/lexer"
)

// ParseError is a single expected-token-set diagnostic at an offset
// (spec.md §7: "Parse: a single expected-token set at an offset").
type ParseError struct {
	Message string
	Span    ast.Span
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Span.File, e.Span.StartLine, e.Span.StartCol, e.Message)
}

// Parser parses one file's token stream into a SourceModule.
type Parser struct {
	l         *lexer.Lexer
	file      string
	curToken  lexer.Token
	peekToken lexer.Token

	prefixFns map[lexer.TokenType]func() ast.Expr
	infixFns  map[lexer.TokenType]func(ast.Expr) ast.Expr
}

// Precedence levels for the Pratt expression parser.
const (
	LOWEST int = iota
	LOGICAL_OR
	LOGICAL_AND
	EQUALS
	COMPARE
	SUM
	PRODUCT
	PREFIX
	CALL
	DOT_ACCESS
)

var precedences = map[lexer.TokenType]int{
	lexer.OR:    LOGICAL_OR,
	lexer.AND:   LOGICAL_AND,
	lexer.EQ:    EQUALS,
	lexer.NEQ:   EQUALS,
	lexer.LT:    COMPARE,
	lexer.GT:    COMPARE,
	lexer.LTE:   COMPARE,
	lexer.GTE:   COMPARE,
	lexer.PLUS:  SUM,
	lexer.MINUS: SUM,
	lexer.STAR:  PRODUCT,
	lexer.SLASH: PRODUCT,
	lexer.PERCENT: PRODUCT,
	lexer.LPAREN: CALL,
	lexer.DOT:   DOT_ACCESS,
}

// New creates a Parser over the given source bytes.
func New(src []byte, file string) *Parser {
	p := &Parser{l: lexer.New(src, file), file: file}
	p.prefixFns = map[lexer.TokenType]func() ast.Expr{
		lexer.IDENT:  p.parseIdent,
		lexer.INT:    p.parseIntLit,
		lexer.FLOAT:  p.parseFloatLit,
		lexer.STRING: p.parseStringLit,
		lexer.TRUE:   p.parseBoolLit,
		lexer.FALSE:  p.parseBoolLit,
		lexer.THIS:   p.parseThis,
		lexer.LPAREN: p.parseGroupedExpr,
		lexer.MINUS:  p.parseUnary,
		lexer.NOT:    p.parseUnary,
		lexer.NEW:    p.parseNewExpr,
	}
	p.infixFns = map[lexer.TokenType]func(ast.Expr) ast.Expr{
		lexer.PLUS: p.parseBinary, lexer.MINUS: p.parseBinary,
		lexer.STAR: p.parseBinary, lexer.SLASH: p.parseBinary, lexer.PERCENT: p.parseBinary,
		lexer.EQ: p.parseBinary, lexer.NEQ: p.parseBinary,
		lexer.LT: p.parseBinary, lexer.GT: p.parseBinary, lexer.LTE: p.parseBinary, lexer.GTE: p.parseBinary,
		lexer.AND: p.parseBinary, lexer.OR: p.parseBinary,
		lexer.LPAREN: p.parseCall,
		lexer.DOT:    p.parseFieldAccess,
	}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) span() ast.Span {
	return ast.Span{File: p.file, StartLine: p.curToken.Line, StartCol: p.curToken.Column}
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Span: p.span()}
}

func (p *Parser) expect(t lexer.TokenType) error {
	if p.curToken.Type != t {
		return p.errorf("expected %s, got %s (%q)", t, p.curToken.Type, p.curToken.Literal)
	}
	p.next()
	return nil
}

// ParseFile parses a complete source file into a SourceModule
// (spec.md §6 Parser.parse_file). Returns the first parse error
// encountered — per spec.md §9, one parse error per file, fatal only to
// that file.
func ParseFile(src []byte, file string) (*ast.SourceModule, error) {
	p := New(src, file)
	return p.parseModule()
}

func (p *Parser) parseModule() (mod *ast.SourceModule, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*ParseError); ok {
				err = pe
				return
			}
			panic(r)
		}
	}()

	mod = &ast.SourceModule{Span: ast.Span{File: p.file}}

	if p.curToken.Type == lexer.MODULE {
		p.next()
		mod.Path = p.parseDottedPath()
	}

	for p.curToken.Type == lexer.IMPORT {
		mod.Imports = append(mod.Imports, p.parseImport())
	}

	for p.curToken.Type != lexer.EOF {
		mod.Entries = append(mod.Entries, p.parseEntry())
	}
	return mod, nil
}

func (p *Parser) fail(format string, args ...any) {
	panic(p.errorf(format, args...))
}

func (p *Parser) parseDottedPath() []string {
	path := []string{p.curIdent()}
	p.next()
	for p.curToken.Type == lexer.DOT {
		p.next()
		path = append(path, p.curIdent())
		p.next()
	}
	return path
}

func (p *Parser) curIdent() string {
	if p.curToken.Type != lexer.IDENT {
		p.fail("expected identifier, got %s (%q)", p.curToken.Type, p.curToken.Literal)
	}
	return ident.NormalizeString(p.curToken.Literal)
}

func (p *Parser) parseImport() ast.Import {
	start := p.span()
	p.next() // consume 'import'

	path := []string{p.curIdent()}
	p.next()
	for p.curToken.Type == lexer.DOT {
		p.next()
		if p.curToken.Type == lexer.STAR {
			p.next()
			return ast.Import{Kind: ast.ImportAll, Path: path, Span: start}
		}
		if p.curToken.Type == lexer.LBRACE {
			break
		}
		path = append(path, p.curIdent())
		p.next()
	}

	switch {
	case p.curToken.Type == lexer.LBRACE:
		p.next()
		var names []string
		for p.curToken.Type != lexer.RBRACE {
			names = append(names, p.curIdent())
			p.next()
			if p.curToken.Type == lexer.COMMA {
				p.next()
			}
		}
		p.next() // consume '}'
		return ast.Import{Kind: ast.ImportSelected, Path: path, Names: names, Span: start}
	default:
		return ast.Import{Kind: ast.ImportExact, Path: path, Span: start}
	}
}

func (p *Parser) parseAnnotations() []ast.Annotation {
	var annos []ast.Annotation
	for p.curToken.Type == lexer.AT {
		start := p.span()
		p.next()
		name := p.curIdent()
		p.next()
		var args []string
		if p.curToken.Type == lexer.LPAREN {
			p.next()
			for p.curToken.Type != lexer.RPAREN {
				args = append(args, p.curToken.Literal)
				p.next()
				if p.curToken.Type == lexer.COMMA {
					p.next()
				}
			}
			p.next() // consume ')'
		}
		annos = append(annos, ast.Annotation{Name: name, Args: args, Span: start})
	}
	return annos
}

func (p *Parser) parseEntry() ast.SourceEntry {
	annos := p.parseAnnotations()

	switch p.curToken.Type {
	case lexer.CLASS, lexer.STRUCT, lexer.NATIVE, lexer.ABSTRACT, lexer.FINAL:
		return p.parseClassDecl()
	case lexer.ENUM:
		return p.parseEnumDecl()
	case lexer.FUNC:
		return p.parseFunctionDecl(annos)
	case lexer.LET:
		return p.parseGlobalLetDecl(annos)
	default:
		p.fail("unexpected top-level token %s (%q)", p.curToken.Type, p.curToken.Literal)
		return nil
	}
}

func (p *Parser) parseClassModifiers() (isNative, isAbstract, isFinal bool) {
	for {
		switch p.curToken.Type {
		case lexer.NATIVE:
			isNative = true
			p.next()
		case lexer.ABSTRACT:
			isAbstract = true
			p.next()
		case lexer.FINAL:
			isFinal = true
			p.next()
		default:
			return
		}
	}
}

func (p *Parser) parseClassDecl() *ast.ClassDecl {
	start := p.span()
	isNative, isAbstract, isFinal := p.parseClassModifiers()
	isStruct := p.curToken.Type == lexer.STRUCT
	if p.curToken.Type != lexer.CLASS && p.curToken.Type != lexer.STRUCT {
		p.fail("expected 'class' or 'struct', got %s", p.curToken.Type)
	}
	p.next()

	decl := &ast.ClassDecl{
		Name: p.curIdent(), IsStruct: isStruct, IsNative: isNative,
		IsAbstract: isAbstract, IsFinal: isFinal, Span: start,
	}
	p.next()

	if p.curToken.Type == lexer.LT {
		p.next()
		for p.curToken.Type != lexer.GT {
			decl.TypeParams = append(decl.TypeParams, p.curIdent())
			p.next()
			if p.curToken.Type == lexer.COMMA {
				p.next()
			}
		}
		p.next() // consume '>'
	}

	if p.curToken.Type == lexer.COLON {
		p.next()
		te := p.parseTypeExpr()
		decl.Extends = &te
	}

	if err := p.expect(lexer.LBRACE); err != nil {
		panic(&ParseError{Message: err.Error(), Span: start})
	}
	for p.curToken.Type != lexer.RBRACE {
		p.parseClassMember(decl)
	}
	p.next() // consume '}'
	return decl
}

func (p *Parser) parseClassMember(decl *ast.ClassDecl) {
	memberAnnos := p.parseAnnotations()
	_ = memberAnnos

	isNative, isStatic, isFinal, isCB, isQuest, isPersist := false, false, false, false, false, false
loop:
	for {
		switch p.curToken.Type {
		case lexer.NATIVE:
			isNative = true
			p.next()
		case lexer.STATIC:
			isStatic = true
			p.next()
		case lexer.FINAL:
			isFinal = true
			p.next()
		case lexer.CB:
			isCB = true
			p.next()
		case lexer.QUEST:
			isQuest = true
			p.next()
		default:
			break loop
		}
	}

	if p.curToken.Type == lexer.FUNC {
		start := p.span()
		p.next()
		name := p.curIdent()
		p.next()
		params := p.parseParamList()
		var ret *ast.TypeExpr
		if p.curToken.Type == lexer.ARROW {
			p.next()
			te := p.parseTypeExpr()
			ret = &te
		}
		var body []ast.Stmt
		if p.curToken.Type == lexer.LBRACE {
			body = p.parseBlock()
		} else {
			if err := p.expect(lexer.SEMICOLON); err != nil {
				panic(&ParseError{Message: err.Error(), Span: start})
			}
		}
		decl.Methods = append(decl.Methods, ast.FunctionDecl{
			Name: name, Params: params, ReturnType: ret, Body: body,
			IsStatic: isStatic, IsNative: isNative, IsFinal: isFinal,
			IsCallback: isCB, IsQuest: isQuest, Span: start,
		})
		return
	}

	// field
	start := p.span()
	name := p.curIdent()
	p.next()
	if err := p.expect(lexer.COLON); err != nil {
		panic(&ParseError{Message: err.Error(), Span: start})
	}
	ty := p.parseTypeExpr()
	var def []ast.Stmt
	if p.curToken.Type == lexer.ASSIGN {
		p.next()
		e := p.parseExpr(LOWEST)
		def = []ast.Stmt{&ast.ExprStmt{Value: e, Span: start}}
	}
	if err := p.expect(lexer.SEMICOLON); err != nil {
		panic(&ParseError{Message: err.Error(), Span: start})
	}
	decl.Fields = append(decl.Fields, ast.FieldDecl{
		Name: name, Type: ty, Static: isStatic, Native: isNative,
		Persist: isPersist, Default: def, Span: start,
	})
}

func (p *Parser) parseEnumDecl() *ast.EnumDecl {
	start := p.span()
	p.next() // consume 'enum'
	isFlags := false
	if p.curToken.Type == lexer.AT {
		// @flags — the only enum-level annotation this grammar supports
		p.next()
		if p.curIdent() != "flags" {
			p.fail("unsupported enum annotation %q", p.curToken.Literal)
		}
		isFlags = true
		p.next()
	}
	decl := &ast.EnumDecl{Name: p.curIdent(), IsFlags: isFlags, Span: start}
	p.next()
	if err := p.expect(lexer.LBRACE); err != nil {
		panic(&ParseError{Message: err.Error(), Span: start})
	}
	var next int64
	for p.curToken.Type != lexer.RBRACE {
		mStart := p.span()
		name := p.curIdent()
		p.next()
		val := next
		if p.curToken.Type == lexer.ASSIGN {
			p.next()
			v, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
			if err != nil {
				p.fail("invalid enum value %q", p.curToken.Literal)
			}
			val = v
			p.next()
		}
		decl.Members = append(decl.Members, ast.EnumMemberDecl{Name: name, Value: val, Span: mStart})
		next = val + 1
		if p.curToken.Type == lexer.COMMA {
			p.next()
		}
	}
	p.next() // consume '}'
	return decl
}

func (p *Parser) parseFunctionDecl(annos []ast.Annotation) *ast.FunctionDecl {
	start := p.span()
	p.next() // consume 'func'
	name := p.curIdent()
	p.next()
	params := p.parseParamList()
	var ret *ast.TypeExpr
	if p.curToken.Type == lexer.ARROW {
		p.next()
		te := p.parseTypeExpr()
		ret = &te
	}
	var body []ast.Stmt
	if p.curToken.Type == lexer.LBRACE {
		body = p.parseBlock()
	} else {
		if err := p.expect(lexer.SEMICOLON); err != nil {
			panic(&ParseError{Message: err.Error(), Span: start})
		}
	}
	return &ast.FunctionDecl{Name: name, Params: params, ReturnType: ret, Body: body, Annotations: annos, Span: start}
}

func (p *Parser) parseGlobalLetDecl(annos []ast.Annotation) *ast.GlobalLetDecl {
	start := p.span()
	p.next() // consume 'let'
	name := p.curIdent()
	p.next()
	if err := p.expect(lexer.COLON); err != nil {
		panic(&ParseError{Message: err.Error(), Span: start})
	}
	ty := p.parseTypeExpr()
	var init []ast.Stmt
	if p.curToken.Type == lexer.ASSIGN {
		p.next()
		e := p.parseExpr(LOWEST)
		init = []ast.Stmt{&ast.ExprStmt{Value: e, Span: start}}
	}
	if err := p.expect(lexer.SEMICOLON); err != nil {
		panic(&ParseError{Message: err.Error(), Span: start})
	}
	return &ast.GlobalLetDecl{Name: name, Type: ty, Init: init, Annotations: annos, Span: start}
}

func (p *Parser) parseParamList() []ast.Param {
	if err := p.expect(lexer.LPAREN); err != nil {
		p.fail(err.Error())
	}
	var params []ast.Param
	for p.curToken.Type != lexer.RPAREN {
		start := p.span()
		isOut := false
		if p.curToken.Type == lexer.OUT {
			isOut = true
			p.next()
		}
		name := p.curIdent()
		p.next()
		if err := p.expect(lexer.COLON); err != nil {
			panic(&ParseError{Message: err.Error(), Span: start})
		}
		ty := p.parseTypeExpr()
		params = append(params, ast.Param{Name: name, Type: ty, IsOut: isOut, Span: start})
		if p.curToken.Type == lexer.COMMA {
			p.next()
		}
	}
	p.next() // consume ')'
	return params
}

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	name := p.curIdent()
	p.next()
	te := ast.TypeExpr{Name: name}
	if p.curToken.Type == lexer.LT {
		p.next()
		for p.curToken.Type != lexer.GT {
			te.Args = append(te.Args, p.parseTypeExpr())
			if p.curToken.Type == lexer.COMMA {
				p.next()
			}
		}
		p.next() // consume '>'
	}
	return te
}

func (p *Parser) parseBlock() []ast.Stmt {
	if err := p.expect(lexer.LBRACE); err != nil {
		p.fail(err.Error())
	}
	var stmts []ast.Stmt
	for p.curToken.Type != lexer.RBRACE {
		stmts = append(stmts, p.parseStmt())
	}
	p.next() // consume '}'
	return stmts
}

func (p *Parser) parseStmt() ast.Stmt {
	start := p.span()
	switch p.curToken.Type {
	case lexer.LET:
		p.next()
		name := p.curIdent()
		p.next()
		var ty *ast.TypeExpr
		if p.curToken.Type == lexer.COLON {
			p.next()
			t := p.parseTypeExpr()
			ty = &t
		}
		var initExpr ast.Expr
		if p.curToken.Type == lexer.ASSIGN {
			p.next()
			initExpr = p.parseExpr(LOWEST)
		}
		p.consumeStmtEnd(start)
		return &ast.LetStmt{Name: name, Type: ty, Init: initExpr, Span: start}
	case lexer.RETURN:
		p.next()
		var val ast.Expr
		if p.curToken.Type != lexer.SEMICOLON && p.curToken.Type != lexer.RBRACE {
			val = p.parseExpr(LOWEST)
		}
		p.consumeStmtEnd(start)
		return &ast.ReturnStmt{Value: val, Span: start}
	case lexer.IF:
		return p.parseIfStmt()
	case lexer.WHILE:
		return p.parseWhileStmt()
	default:
		return p.parseExprOrAssignStmt(start)
	}
}

// consumeStmtEnd accepts an optional trailing semicolon.
func (p *Parser) consumeStmtEnd(_ ast.Span) {
	if p.curToken.Type == lexer.SEMICOLON {
		p.next()
	}
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	start := p.span()
	p.next() // consume 'if'
	cond := p.parseExpr(LOWEST)
	then := p.parseBlock()
	var els []ast.Stmt
	if p.curToken.Type == lexer.ELSE {
		p.next()
		if p.curToken.Type == lexer.IF {
			els = []ast.Stmt{p.parseIfStmt()}
		} else {
			els = p.parseBlock()
		}
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: els, Span: start}
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	start := p.span()
	p.next() // consume 'while'
	cond := p.parseExpr(LOWEST)
	body := p.parseBlock()
	return &ast.WhileStmt{Cond: cond, Body: body, Span: start}
}

var compoundOps = map[lexer.TokenType]string{
	lexer.PLUS_ASSIGN: "+", lexer.MINUS_ASSIGN: "-", lexer.STAR_ASSIGN: "*", lexer.SLASH_ASSIGN: "/",
}

func (p *Parser) parseExprOrAssignStmt(start ast.Span) ast.Stmt {
	e := p.parseExpr(LOWEST)
	if op, ok := compoundOps[p.curToken.Type]; ok {
		p.next()
		val := p.parseExpr(LOWEST)
		p.consumeStmtEnd(start)
		return &ast.CompoundAssignStmt{Target: e, Op: op, Value: val, Span: start}
	}
	if p.curToken.Type == lexer.ASSIGN {
		p.next()
		val := p.parseExpr(LOWEST)
		p.consumeStmtEnd(start)
		return &ast.AssignStmt{Target: e, Value: val, Span: start}
	}
	p.consumeStmtEnd(start)
	return &ast.ExprStmt{Value: e, Span: start}
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) parseExpr(precedence int) ast.Expr {
	prefix, ok := p.prefixFns[p.curToken.Type]
	if !ok {
		p.fail("no prefix parse rule for %s (%q)", p.curToken.Type, p.curToken.Literal)
	}
	left := prefix()

	for p.curToken.Type != lexer.SEMICOLON && precedence < p.curPrecedence() {
		infix, ok := p.infixFns[p.curToken.Type]
		if !ok {
			return left
		}
		left = infix(left)
	}
	return left
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) parseIdent() ast.Expr {
	tok := p.curToken
	e := &ast.Ident{Name: ident.NormalizeString(tok.Literal), Span: p.span()}
	p.next()
	return e
}

func (p *Parser) parseThis() ast.Expr {
	span := p.span()
	p.next()
	return &ast.ThisExpr{Span: span}
}

func (p *Parser) parseIntLit() ast.Expr {
	tok := p.curToken
	v, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		p.fail("invalid integer literal %q", tok.Literal)
	}
	span := p.span()
	p.next()
	return &ast.IntLit{Value: v, Span: span}
}

func (p *Parser) parseFloatLit() ast.Expr {
	tok := p.curToken
	v, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		p.fail("invalid float literal %q", tok.Literal)
	}
	span := p.span()
	p.next()
	return &ast.FloatLit{Value: v, Span: span}
}

func (p *Parser) parseStringLit() ast.Expr {
	span := p.span()
	v := p.curToken.Literal
	p.next()
	return &ast.StringLit{Value: v, Span: span}
}

func (p *Parser) parseBoolLit() ast.Expr {
	span := p.span()
	v := p.curToken.Type == lexer.TRUE
	p.next()
	return &ast.BoolLit{Value: v, Span: span}
}

func (p *Parser) parseGroupedExpr() ast.Expr {
	p.next() // consume '('
	e := p.parseExpr(LOWEST)
	if err := p.expect(lexer.RPAREN); err != nil {
		p.fail(err.Error())
	}
	return e
}

func (p *Parser) parseUnary() ast.Expr {
	span := p.span()
	op := p.curToken.Literal
	p.next()
	operand := p.parseExpr(PREFIX)
	return &ast.UnaryExpr{Op: op, Expr: operand, Span: span}
}

func (p *Parser) parseBinary(left ast.Expr) ast.Expr {
	span := p.span()
	op := p.curToken.Literal
	prec := p.curPrecedence()
	p.next()
	right := p.parseExpr(prec)
	return &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: span}
}

func (p *Parser) parseCall(callee ast.Expr) ast.Expr {
	span := p.span()
	p.next() // consume '('
	var args []ast.Expr
	for p.curToken.Type != lexer.RPAREN {
		args = append(args, p.parseExpr(LOWEST))
		if p.curToken.Type == lexer.COMMA {
			p.next()
		}
	}
	p.next() // consume ')'
	return &ast.CallExpr{Callee: callee, Args: args, Span: span}
}

func (p *Parser) parseFieldAccess(receiver ast.Expr) ast.Expr {
	span := p.span()
	p.next() // consume '.'
	name := p.curIdent()
	p.next()
	return &ast.FieldAccessExpr{Receiver: receiver, Name: name, Span: span}
}

func (p *Parser) parseNewExpr() ast.Expr {
	span := p.span()
	p.next() // consume 'new'
	ty := p.parseTypeExpr()
	var args []ast.Expr
	if p.curToken.Type == lexer.LPAREN {
		p.next()
		for p.curToken.Type != lexer.RPAREN {
			args = append(args, p.parseExpr(LOWEST))
			if p.curToken.Type == lexer.COMMA {
				p.next()
			}
		}
		p.next() // consume ')'
	}
	return &ast.NewExpr{Type: ty, Args: args, Span: span}
}
