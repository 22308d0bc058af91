package parse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/lang"
)

const goSample = `package main

import "fmt"

// Greet prints a greeting.
func Greet(name string) {
	fmt.Println("hello", name)
}
`

func goLang(t *testing.T) *lang.Language {
	t.Helper()
	l, ok := lang.NewRegistry().ByName("go")
	require.True(t, ok)
	return l
}

func TestPoolParsesGo(t *testing.T) {
	pool := NewPool(2, 10*time.Second)
	defer pool.Close()

	tree, err := pool.Parse(context.Background(), []byte(goSample), goLang(t))
	require.NoError(t, err)
	require.NotNil(t, tree.Root)

	assert.Equal(t, "source_file", tree.Root.Type)
	assert.False(t, tree.HasSyntaxErrors)

	var fn *Node
	tree.Root.Walk(func(n *Node) bool {
		if n.Type == "function_declaration" {
			fn = n
			return false
		}
		return true
	})
	require.NotNil(t, fn)
	name := fn.ChildByField("name")
	require.NotNil(t, name)
	assert.Equal(t, "Greet", name.Content(tree.Source))
}

func TestPoolCheckinAfterCloseDoesNotBlock(t *testing.T) {
	pool := NewPool(1, 10*time.Second)
	l := goLang(t)

	parser, err := pool.checkout(context.Background(), l)
	require.NoError(t, err)

	pool.Close()

	done := make(chan struct{})
	go func() {
		pool.checkin(l, parser)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checkin blocked after Close")
	}

	// A closed pool refuses new parses instead of re-creating parsers.
	_, err = pool.Parse(context.Background(), []byte(goSample), l)
	require.Error(t, err)
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	pool := NewPool(1, 10*time.Second)
	_, err := pool.Parse(context.Background(), []byte(goSample), goLang(t))
	require.NoError(t, err)

	pool.Close()
	pool.Close()
}

func TestPoolTolerantOfSyntaxErrors(t *testing.T) {
	pool := NewPool(1, 10*time.Second)
	defer pool.Close()

	tree, err := pool.Parse(context.Background(), []byte("package main\n\nfunc broken( {\n"), goLang(t))
	require.NoError(t, err, "recoverable syntax errors still produce a tree")
	assert.True(t, tree.HasSyntaxErrors)
}

func TestPoolContextCancelled(t *testing.T) {
	pool := NewPool(1, time.Second)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Parse(ctx, []byte(goSample), goLang(t))
	assert.Error(t, err)
}

func TestCacheHitOnUnchangedContent(t *testing.T) {
	pool := NewPool(1, 10*time.Second)
	defer pool.Close()
	cache := NewCache(pool, 1<<20)

	content := []byte(goSample)
	l := goLang(t)

	lease1, err := cache.GetOrParse(context.Background(), "main.go", content, l)
	require.NoError(t, err)
	lease1.Release()

	lease2, err := cache.GetOrParse(context.Background(), "main.go", content, l)
	require.NoError(t, err)
	defer lease2.Release()

	assert.Same(t, lease1.Tree, lease2.Tree, "unchanged content must hit the cache")

	hits, misses, _ := cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestCacheMissOnMutatedContent(t *testing.T) {
	pool := NewPool(1, 10*time.Second)
	defer pool.Close()
	cache := NewCache(pool, 1<<20)

	l := goLang(t)

	lease1, err := cache.GetOrParse(context.Background(), "main.go", []byte(goSample), l)
	require.NoError(t, err)
	lease1.Release()

	mutated := []byte(goSample + "\nfunc Extra() {}\n")
	lease2, err := cache.GetOrParse(context.Background(), "main.go", mutated, l)
	require.NoError(t, err)
	defer lease2.Release()

	assert.NotSame(t, lease1.Tree, lease2.Tree, "mutated content must not return the stale tree")
}

func TestCacheNeverEvictsLeasedEntry(t *testing.T) {
	pool := NewPool(1, 10*time.Second)
	defer pool.Close()

	// Budget small enough that any second entry forces eviction.
	cache := NewCache(pool, 1)

	l := goLang(t)
	leaseA, err := cache.GetOrParse(context.Background(), "a.go", []byte(goSample), l)
	require.NoError(t, err)

	// Over budget with A still leased; A must survive.
	leaseB, err := cache.GetOrParse(context.Background(), "b.go", []byte(goSample), l)
	require.NoError(t, err)
	leaseB.Release()

	assert.NotNil(t, leaseA.Tree.Root, "leased tree stays valid under eviction pressure")
	leaseA.Release()
}

func TestCacheInvalidate(t *testing.T) {
	pool := NewPool(1, 10*time.Second)
	defer pool.Close()
	cache := NewCache(pool, 1<<20)

	l := goLang(t)
	lease, err := cache.GetOrParse(context.Background(), "main.go", []byte(goSample), l)
	require.NoError(t, err)
	lease.Release()

	cache.Invalidate("main.go")

	lease2, err := cache.GetOrParse(context.Background(), "main.go", []byte(goSample), l)
	require.NoError(t, err)
	defer lease2.Release()

	hits, _, _ := cache.Stats()
	assert.Equal(t, uint64(0), hits)
}

func TestHashContentStable(t *testing.T) {
	a := HashContent([]byte("same"))
	b := HashContent([]byte("same"))
	c := HashContent([]byte("different"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
