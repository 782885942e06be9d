package resolve

import (
	"sync"

	"github.com/sells-group/resolve-cli/internal/model"
	"github.com/sells-group/resolve-cli/internal/normalize"
)

// Indexed pairs an entity with the normalized name it is indexed under.
type Indexed struct {
	Entity   *model.CanonicalEntity
	NameNorm string
}

// EntityIndex is the lookup surface the resolver matches records against.
type EntityIndex interface {
	// ByIdentifier returns the entity owning a registry identifier, or nil.
	ByIdentifier(identifier string) *model.CanonicalEntity
	// Candidates returns every entity sharing a blocking token.
	Candidates(block string) []Indexed
	// ByDomain returns every entity indexed under a website domain.
	ByDomain(domain string) []Indexed
	// Insert registers a new entity under its identifier, normalized name
	// and website domain. Empty keys are skipped.
	Insert(entity *model.CanonicalEntity, identifier, nameNorm, domain string)
	// SetIdentifier claims an identifier for an entity that had none.
	SetIdentifier(entityID, identifier string)
	// UpdateName moves an entity to a new normalized name.
	UpdateName(entityID, nameNorm string)
	// UpdateDomain moves an entity to a new website domain.
	UpdateDomain(entityID, domain string)
	// All returns every indexed entity.
	All() []*model.CanonicalEntity
	Len() int
}

// MemoryIndex is the in-process EntityIndex used for batch runs. Safe for
// concurrent use.
type MemoryIndex struct {
	mu      sync.RWMutex
	byID    map[string]*model.CanonicalEntity
	ident   map[string]string              // identifier -> entity ID
	names   map[string]string              // entity ID -> normalized name
	blocks  map[string]map[string]struct{} // blocking token -> entity IDs
	domains map[string]map[string]struct{} // website domain -> entity IDs
	entDom  map[string]string              // entity ID -> website domain
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byID:    make(map[string]*model.CanonicalEntity),
		ident:   make(map[string]string),
		names:   make(map[string]string),
		blocks:  make(map[string]map[string]struct{}),
		domains: make(map[string]map[string]struct{}),
		entDom:  make(map[string]string),
	}
}

func (ix *MemoryIndex) ByIdentifier(identifier string) *model.CanonicalEntity {
	if identifier == "" {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if id, ok := ix.ident[identifier]; ok {
		return ix.byID[id]
	}
	return nil
}

func (ix *MemoryIndex) Candidates(block string) []Indexed {
	if block == "" {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := ix.blocks[block]
	out := make([]Indexed, 0, len(ids))
	for id := range ids {
		out = append(out, Indexed{Entity: ix.byID[id], NameNorm: ix.names[id]})
	}
	return out
}

func (ix *MemoryIndex) ByDomain(domain string) []Indexed {
	if domain == "" {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := ix.domains[domain]
	out := make([]Indexed, 0, len(ids))
	for id := range ids {
		out = append(out, Indexed{Entity: ix.byID[id], NameNorm: ix.names[id]})
	}
	return out
}

func (ix *MemoryIndex) Insert(entity *model.CanonicalEntity, identifier, nameNorm, domain string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byID[entity.ID] = entity
	if identifier != "" {
		ix.ident[identifier] = entity.ID
	}
	ix.indexName(entity.ID, nameNorm)
	ix.indexDomain(entity.ID, domain)
}

func (ix *MemoryIndex) SetIdentifier(entityID, identifier string) {
	if identifier == "" {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, taken := ix.ident[identifier]; !taken {
		ix.ident[identifier] = entityID
	}
}

func (ix *MemoryIndex) UpdateName(entityID, nameNorm string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if old, ok := ix.names[entityID]; ok && old == nameNorm {
		return
	}
	ix.dropName(entityID)
	ix.indexName(entityID, nameNorm)
}

func (ix *MemoryIndex) UpdateDomain(entityID, domain string) {
	if domain == "" {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.entDom[entityID] == domain {
		return
	}
	ix.dropDomain(entityID)
	ix.indexDomain(entityID, domain)
}

func (ix *MemoryIndex) All() []*model.CanonicalEntity {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*model.CanonicalEntity, 0, len(ix.byID))
	for _, e := range ix.byID {
		out = append(out, e)
	}
	return out
}

func (ix *MemoryIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}

func (ix *MemoryIndex) indexName(entityID, nameNorm string) {
	ix.names[entityID] = nameNorm
	if tok := normalize.FirstToken(nameNorm); tok != "" {
		if ix.blocks[tok] == nil {
			ix.blocks[tok] = make(map[string]struct{})
		}
		ix.blocks[tok][entityID] = struct{}{}
	}
}

func (ix *MemoryIndex) dropName(entityID string) {
	old, ok := ix.names[entityID]
	if !ok {
		return
	}
	delete(ix.names, entityID)
	if tok := normalize.FirstToken(old); tok != "" {
		if ids := ix.blocks[tok]; ids != nil {
			delete(ids, entityID)
			if len(ids) == 0 {
				delete(ix.blocks, tok)
			}
		}
	}
}

func (ix *MemoryIndex) indexDomain(entityID, domain string) {
	if domain == "" {
		return
	}
	ix.entDom[entityID] = domain
	if ix.domains[domain] == nil {
		ix.domains[domain] = make(map[string]struct{})
	}
	ix.domains[domain][entityID] = struct{}{}
}

func (ix *MemoryIndex) dropDomain(entityID string) {
	old, ok := ix.entDom[entityID]
	if !ok {
		return
	}
	delete(ix.entDom, entityID)
	if ids := ix.domains[old]; ids != nil {
		delete(ids, entityID)
		if len(ids) == 0 {
			delete(ix.domains, old)
		}
	}
}
