// Package service implements the threaded-post lifecycle engine and the
// user and community services built around it.
package service

import (
	"nerdtalk/internal/cache"
	"nerdtalk/internal/repository"
)

// Engine wires the engine components over one set of stores.
type Engine struct {
	Stores       repository.Stores
	Walker       *TreeWalker
	Index        *IndexMaintainer
	Deleter      *CascadeDeleter
	Materializer *ThreadMaterializer
	Threads      *cache.ThreadCache
}

// NewEngine builds the engine. threads may be nil to disable caching.
func NewEngine(stores repository.Stores, threads *cache.ThreadCache) *Engine {
	if threads == nil {
		threads = cache.NewThreadCache(nil, 0)
	}
	walker := NewTreeWalker(stores.Posts)
	index := NewIndexMaintainer(stores.Index)
	return &Engine{
		Stores:       stores,
		Walker:       walker,
		Index:        index,
		Deleter:      NewCascadeDeleter(stores.Posts, walker, index, threads),
		Materializer: NewThreadMaterializer(stores.Posts, stores.Users, stores.Communities, threads),
		Threads:      threads,
	}
}
