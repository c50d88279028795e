package api

import (
	"log"
	"sync"

	"github.com/cns-iu/dvl-llm/orchestrator"
	lru "github.com/hashicorp/golang-lru/v2"
)

// session binds one orchestrator to one client. mu serialises calls into
// the orchestrator, which is not safe for concurrent use.
type session struct {
	mu   sync.Mutex
	id   string
	orch *orchestrator.Orchestrator
}

// sessionRegistry keeps the most recently used sessions in memory. Evicted
// sessions lose their undo stack; their persisted versions remain.
type sessionRegistry struct {
	cache *lru.Cache[string, *session]
}

func newSessionRegistry(size int) (*sessionRegistry, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.NewWithEvict[string, *session](size, func(id string, _ *session) {
		log.Printf("♻️ [API] Evicted session %s", id)
	})
	if err != nil {
		return nil, err
	}
	return &sessionRegistry{cache: cache}, nil
}

func (r *sessionRegistry) get(id string) (*session, bool) {
	return r.cache.Get(id)
}

func (r *sessionRegistry) put(s *session) {
	r.cache.Add(s.id, s)
}

func (r *sessionRegistry) len() int { return r.cache.Len() }
