package parse

import (
	"context"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/lang"
)

// Pool maintains at most size parser instances per language. Checkout
// blocks when a language's parsers are all in use, which is the
// backpressure mechanism for the indexing workers.
type Pool struct {
	size    int
	timeout time.Duration

	mu     sync.Mutex
	langs  map[string]chan *sitter.Parser
	closed bool
}

// NewPool creates a parser pool. size is parsers per language; timeout
// bounds a single parse.
func NewPool(size int, timeout time.Duration) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:    size,
		timeout: timeout,
		langs:   make(map[string]chan *sitter.Parser),
	}
}

// Parse parses source with the grammar for l. It blocks until a parser
// is available, then runs the parse under the pool's timeout.
func (p *Pool) Parse(ctx context.Context, source []byte, l *lang.Language) (*Tree, error) {
	if l == nil || l.Grammar == nil {
		return nil, errors.New(errors.ErrCodeUnsupportedLanguage, "no grammar registered", nil)
	}

	parser, err := p.checkout(ctx, l)
	if err != nil {
		return nil, err
	}
	defer p.checkin(l, parser)

	parseCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		parseCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	parser.SetLanguage(l.Grammar)
	tsTree, err := parser.ParseCtx(parseCtx, nil, source)
	if err != nil {
		if parseCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, errors.New(errors.ErrCodeParseTimeout, "parse exceeded time budget", err)
		}
		return nil, errors.Wrap(errors.ErrCodeSyntaxError, err)
	}
	if tsTree == nil {
		return nil, errors.New(errors.ErrCodeSyntaxError, "parser produced no tree", nil)
	}
	defer tsTree.Close()

	tree := &Tree{
		Source:   source,
		Language: l,
	}
	tree.Root = convert(tsTree.RootNode(), "", tree)
	tree.HasSyntaxErrors = tree.Root != nil && tree.Root.HasError
	return tree, nil
}

// checkout blocks until a parser for l is free or ctx is done. Parsers
// are created lazily up to the pool size.
func (p *Pool) checkout(ctx context.Context, l *lang.Language) (*sitter.Parser, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New(errors.ErrCodeInternal, "parser pool is closed", nil)
	}
	ch, ok := p.langs[l.Name]
	if !ok {
		ch = make(chan *sitter.Parser, p.size)
		for i := 0; i < p.size; i++ {
			ch <- sitter.NewParser()
		}
		p.langs[l.Name] = ch
	}
	p.mu.Unlock()

	select {
	case parser := <-ch:
		return parser, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// checkin returns a parser to its language channel. A parser checked
// out before Close is disposed of here instead of re-pooled.
func (p *Pool) checkin(l *lang.Language, parser *sitter.Parser) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		parser.Close()
		return
	}
	ch := p.langs[l.Name]
	p.mu.Unlock()
	ch <- parser
}

// Close releases all pooled parsers. Parsers still checked out are
// closed when their holders check them back in.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	for name, ch := range p.langs {
		close(ch)
		for parser := range ch {
			parser.Close()
		}
		delete(p.langs, name)
	}
}

// convert copies a tree-sitter node into the pool-independent Node form
// so trees can outlive the pooled parser that produced them.
func convert(ts *sitter.Node, fieldName string, tree *Tree) *Node {
	if ts == nil {
		return nil
	}
	tree.nodeCount++

	n := &Node{
		Type:      ts.Type(),
		StartByte: ts.StartByte(),
		EndByte:   ts.EndByte(),
		StartPoint: Point{
			Row:    ts.StartPoint().Row,
			Column: ts.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    ts.EndPoint().Row,
			Column: ts.EndPoint().Column,
		},
		HasError:  ts.HasError(),
		FieldName: fieldName,
		Children:  make([]*Node, 0, int(ts.ChildCount())),
	}

	for i := 0; i < int(ts.ChildCount()); i++ {
		child := ts.Child(i)
		if child == nil {
			continue
		}
		n.Children = append(n.Children, convert(child, ts.FieldNameForChild(i), tree))
	}
	return n
}
