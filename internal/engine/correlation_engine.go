package engine

import (
	"context"
	"fmt"
	"log"
	"net/netip"
	"strings"
	"time"

	"github.com/scrypster/osintgraph/internal/correlation"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/file"
	"github.com/scrypster/osintgraph/pkg/types"
)

// CorrelationEngine owns one correlation session: the authoritative entity
// map, the deduplicated relationships, the relationship graph and the
// current clusters.
//
// The engine is not safe for concurrent mutation. Callers that ingest from
// several goroutines must serialize ProcessFindings, Load and Reset; read
// methods may run concurrently with each other.
type CorrelationEngine struct {
	config     Config
	algorithms []correlation.Algorithm
	scorer     *ConfidenceScorer

	entities      map[string]*types.Entity
	entityOrder   []string
	relationships map[string]*types.Relationship // by pair key
	relOrder      []string                       // pair keys, first-discovered order
	graph         *RelationshipGraph
	clusters      []types.EntityCluster

	onCorrelationComplete func(result *types.CorrelationResult)
}

// NewCorrelationEngine creates an engine with the given configuration.
func NewCorrelationEngine(cfg Config) (*CorrelationEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	e := &CorrelationEngine{
		config:     cfg,
		algorithms: correlation.All(cfg.Correlation),
		scorer:     NewConfidenceScorer(cfg.Correlation),
	}
	e.Reset()
	return e, nil
}

// SetOnCorrelationComplete registers a callback invoked after every
// ProcessFindings call with the resulting state. The callback receives a
// copy and runs on the caller's goroutine.
func (e *CorrelationEngine) SetOnCorrelationComplete(callback func(result *types.CorrelationResult)) {
	e.onCorrelationComplete = callback
}

// Reset drops all state.
func (e *CorrelationEngine) Reset() {
	e.entities = make(map[string]*types.Entity)
	e.entityOrder = nil
	e.relationships = make(map[string]*types.Relationship)
	e.relOrder = nil
	e.graph = NewRelationshipGraph()
	e.clusters = []types.EntityCluster{}
}

// ProcessFindings ingests a batch of findings and re-correlates the full
// entity set. Entities whose id is already known are left untouched.
// Proposals are scored, deduplicated per unordered pair (highest confidence
// wins, the earlier proposal wins ties) and merged into the existing
// relationships under the same rule, with existing relationships winning
// ties. The returned result describes the whole session.
func (e *CorrelationEngine) ProcessFindings(findings []types.Finding) *types.CorrelationResult {
	added := 0
	for _, entity := range e.extractEntities(findings) {
		if _, exists := e.entities[entity.ID]; exists {
			continue
		}
		e.entities[entity.ID] = entity
		e.entityOrder = append(e.entityOrder, entity.ID)
		e.graph.AddEntity(entity)
		added++
	}

	proposals := e.correlate(e.orderedEntities())
	for _, r := range proposals {
		key := r.PairKey()
		existing, ok := e.relationships[key]
		if !ok {
			e.relationships[key] = r
			e.relOrder = append(e.relOrder, key)
		} else if r.Confidence > existing.Confidence {
			r.CreatedAt = existing.CreatedAt
			e.relationships[key] = r
		} else {
			continue
		}
		if err := e.graph.AddRelationship(r); err != nil {
			// Proposals only reference ingested entities.
			log.Printf("engine: dropping relationship %s: %v", r.ID, err)
		}
	}

	e.clusters = e.buildClusters()
	result := e.Result()
	log.Printf("engine: processed %d findings, %d new entities, %d entities, %d relationships, %d clusters",
		len(findings), added, len(result.Entities), len(result.Relationships), len(result.Clusters))

	if e.onCorrelationComplete != nil {
		e.onCorrelationComplete(e.Result())
	}
	return result
}

// extractEntities builds one account per found finding plus email and ip
// entities derived from its metadata. Ids repeated within the batch keep
// their first occurrence.
func (e *CorrelationEngine) extractEntities(findings []types.Finding) []*types.Entity {
	now := e.config.Clock().UTC()
	seen := make(map[string]struct{})
	var out []*types.Entity
	add := func(entity *types.Entity) {
		if _, dup := seen[entity.ID]; dup {
			return
		}
		seen[entity.ID] = struct{}{}
		out = append(out, entity)
	}

	for _, f := range findings {
		if !f.IsFound() {
			continue
		}
		account := accountFromFinding(f, now)
		add(account)

		if address, ok := emailLiteral(account); ok {
			add(&types.Entity{
				ID:        types.EntityID(types.EntityEmail, address),
				Kind:      types.EntityEmail,
				Name:      address,
				Sources:   append([]string(nil), account.Sources...),
				CreatedAt: now,
			})
		}
		if literal, ok := ipLiteral(account); ok {
			add(&types.Entity{
				ID:        types.EntityID(types.EntityIP, literal),
				Kind:      types.EntityIP,
				Name:      literal,
				Sources:   append([]string(nil), account.Sources...),
				CreatedAt: now,
			})
		}
	}
	return out
}

// emailLiteral returns the lowercase email an account reports, if valid.
func emailLiteral(account *types.Entity) (string, bool) {
	email, ok := account.StringAttr(types.AttrKeyEmail)
	if !ok {
		return "", false
	}
	if _, _, valid := correlation.EmailParts(email); !valid {
		return "", false
	}
	return strings.ToLower(email), true
}

// ipLiteral returns the canonical form of the ip address an account
// reports, if it parses.
func ipLiteral(account *types.Entity) (string, bool) {
	raw, ok := account.StringAttr(types.AttrKeyIPAddress)
	if !ok {
		return "", false
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

// accountFromFinding converts a found finding into an account entity.
// Metadata values of an unsupported shape are dropped.
func accountFromFinding(f types.Finding, now time.Time) *types.Entity {
	username := strings.TrimSpace(f.Username)
	platform := strings.TrimSpace(f.PlatformName)

	attrs := make(types.Attributes, len(f.Metadata)+2)
	for key, raw := range f.Metadata {
		if v, ok := types.ValueFromAny(raw); ok {
			attrs[key] = v
		}
	}
	if platform != "" {
		attrs[types.AttrKeyPlatform] = types.StringValue(platform)
	}
	if url := strings.TrimSpace(f.ProfileURL); url != "" {
		attrs[types.AttrKeyProfileURL] = types.StringValue(url)
	}

	var sources []string
	if platform != "" {
		sources = append(sources, platform)
	}
	if source, ok := f.MetadataString("source"); ok && !strings.EqualFold(source, platform) {
		sources = append(sources, source)
	}

	return &types.Entity{
		ID:         types.EntityID(types.EntityAccount, platform, username),
		Kind:       types.EntityAccount,
		Name:       username,
		Attributes: attrs,
		Sources:    sources,
		CreatedAt:  now,
	}
}

// correlate runs every algorithm, scores the proposals and keeps one per
// unordered pair in first-discovered order.
func (e *CorrelationEngine) correlate(entities []*types.Entity) []*types.Relationship {
	now := e.config.Clock().UTC()
	best := make(map[string]*types.Relationship)
	var order []string
	carriers := attributeCarriers(entities)

	for _, algorithm := range e.algorithms {
		for _, r := range algorithm.Correlate(entities) {
			r.Canonicalize()
			if soleCarrierLink(e.entities[r.EntityA], e.entities[r.EntityB], carriers) {
				continue
			}
			raw := r.Confidence
			r.Confidence = e.scorer.ScoreRelationship(r, e.entities[r.EntityA], e.entities[r.EntityB])
			if r.Metadata == nil {
				r.Metadata = make(map[string]interface{})
			}
			r.Metadata["raw_confidence"] = raw
			r.CreatedAt = now

			key := r.PairKey()
			current, ok := best[key]
			if !ok {
				best[key] = r
				order = append(order, key)
				continue
			}
			if r.Confidence > current.Confidence {
				best[key] = r
			}
		}
	}

	out := make([]*types.Relationship, len(order))
	for i, key := range order {
		out[i] = best[key]
	}
	return out
}

// attributeCarriers counts, per derived email or ip entity id, the identity
// entities that report the value themselves.
func attributeCarriers(entities []*types.Entity) map[string]int {
	carriers := make(map[string]int)
	for _, entity := range entities {
		if entity == nil || !entity.Kind.IsIdentity() {
			continue
		}
		if address, ok := emailLiteral(entity); ok {
			carriers[types.EntityID(types.EntityEmail, address)]++
		}
		if literal, ok := ipLiteral(entity); ok {
			carriers[types.EntityID(types.EntityIP, literal)]++
		}
	}
	return carriers
}

// soleCarrierLink reports whether a proposal only links an account to the
// email or ip it alone reports. Once a second entity carries the value the
// link is kept.
func soleCarrierLink(a, b *types.Entity, carriers map[string]int) bool {
	return reportsAlone(a, b, carriers) || reportsAlone(b, a, carriers)
}

func reportsAlone(holder, derived *types.Entity, carriers map[string]int) bool {
	if holder == nil || derived == nil || !holder.Kind.IsIdentity() || carriers[derived.ID] != 1 {
		return false
	}
	var literal string
	var ok bool
	switch derived.Kind {
	case types.EntityEmail:
		literal, ok = emailLiteral(holder)
	case types.EntityIP:
		literal, ok = ipLiteral(holder)
	default:
		return false
	}
	return ok && types.EntityID(derived.Kind, literal) == derived.ID
}

// buildClusters groups entities connected by relationships at or above the
// cluster floor. The representative is the member with the most in-cluster
// edges, the first-seen member on ties.
func (e *CorrelationEngine) buildClusters() []types.EntityCluster {
	floor := e.config.Correlation.ClusterMinConfidence
	clusters := []types.EntityCluster{}

	for _, members := range e.graph.FindClusters(floor, e.config.Correlation.ClusterMinSize) {
		inCluster := make(map[string]struct{}, len(members))
		for _, id := range members {
			inCluster[id] = struct{}{}
		}

		degree := make(map[string]int, len(members))
		var rels []*types.Relationship
		for _, key := range e.relOrder {
			r := e.relationships[key]
			if r.Confidence < floor {
				continue
			}
			if _, ok := inCluster[r.EntityA]; !ok {
				continue
			}
			rels = append(rels, r)
			degree[r.EntityA]++
			degree[r.EntityB]++
		}

		representative := members[0]
		for _, id := range members[1:] {
			if degree[id] > degree[representative] {
				representative = id
			}
		}

		relIDs := make([]string, len(rels))
		for i, r := range rels {
			relIDs[i] = r.ID
		}
		clusters = append(clusters, types.EntityCluster{
			ID:             "cluster:" + representative,
			Entities:       members,
			Representative: representative,
			Confidence:     e.scorer.ScoreCluster(members, rels),
			Relationships:  relIDs,
		})
	}
	return clusters
}

// orderedEntities returns the live entities in first-seen order.
func (e *CorrelationEngine) orderedEntities() []*types.Entity {
	out := make([]*types.Entity, len(e.entityOrder))
	for i, id := range e.entityOrder {
		out[i] = e.entities[id]
	}
	return out
}

// orderedRelationships returns the live relationships in first-discovered
// order.
func (e *CorrelationEngine) orderedRelationships() []*types.Relationship {
	out := make([]*types.Relationship, len(e.relOrder))
	for i, key := range e.relOrder {
		out[i] = e.relationships[key]
	}
	return out
}

// Result returns a copy of the current session state.
func (e *CorrelationEngine) Result() *types.CorrelationResult {
	result := types.EmptyResult()
	for _, entity := range e.orderedEntities() {
		result.Entities = append(result.Entities, entity.Clone())
	}
	var total float64
	for _, r := range e.orderedRelationships() {
		result.Relationships = append(result.Relationships, r.Clone())
		total += r.Confidence
	}
	if n := len(result.Relationships); n > 0 {
		result.ConfidenceAverage = total / float64(n)
	}
	result.Clusters = e.Clusters()
	result.Summary = summarize(result)
	return result
}

// GetRelationships returns copies of the relationships that pass filter, in
// first-discovered order. Unknown entity ids yield an empty list.
func (e *CorrelationEngine) GetRelationships(filter RelationshipFilter) []*types.Relationship {
	out := []*types.Relationship{}
	for _, r := range e.orderedRelationships() {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Entities returns copies of every entity in first-seen order.
func (e *CorrelationEngine) Entities() []*types.Entity {
	out := make([]*types.Entity, 0, len(e.entityOrder))
	for _, entity := range e.orderedEntities() {
		out = append(out, entity.Clone())
	}
	return out
}

// Entity returns a copy of the entity with the given id.
func (e *CorrelationEngine) Entity(id string) (*types.Entity, bool) {
	entity, ok := e.entities[id]
	if !ok {
		return nil, false
	}
	return entity.Clone(), true
}

// Clusters returns a copy of the current clusters.
func (e *CorrelationEngine) Clusters() []types.EntityCluster {
	out := make([]types.EntityCluster, len(e.clusters))
	for i, c := range e.clusters {
		c.Entities = append([]string(nil), c.Entities...)
		c.Relationships = append([]string(nil), c.Relationships...)
		out[i] = c
	}
	return out
}

// Graph returns the relationship graph. Callers must treat it as read-only.
func (e *CorrelationEngine) Graph() *RelationshipGraph {
	return e.graph
}

// Snapshot captures the session as a persistable document.
func (e *CorrelationEngine) Snapshot() *storage.Snapshot {
	return storage.NewSnapshot(e.orderedEntities(), e.orderedRelationships(), e.clusters, e.config.Clock())
}

// Save writes the session to a snapshot file.
func (e *CorrelationEngine) Save(path string) error {
	if err := file.WriteSnapshot(path, e.Snapshot()); err != nil {
		return fmt.Errorf("engine: save %s: %w", path, err)
	}
	log.Printf("engine: saved %d entities, %d relationships to %s", len(e.entities), len(e.relationships), path)
	return nil
}

// Load replaces the session with a snapshot file. On any error the current
// state is left untouched.
func (e *CorrelationEngine) Load(path string) error {
	snap, err := file.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("engine: load %s: %w", path, err)
	}
	if err := e.Restore(snap); err != nil {
		return err
	}
	log.Printf("engine: loaded %d entities, %d relationships from %s", len(e.entities), len(e.relationships), path)
	return nil
}

// SaveTo writes the session to a snapshot store under name.
func (e *CorrelationEngine) SaveTo(ctx context.Context, store storage.SnapshotStore, name string) error {
	if err := store.Save(ctx, name, e.Snapshot()); err != nil {
		return fmt.Errorf("engine: save snapshot %s: %w", name, err)
	}
	return nil
}

// LoadFrom replaces the session with a snapshot from store. On any error
// the current state is left untouched.
func (e *CorrelationEngine) LoadFrom(ctx context.Context, store storage.SnapshotStore, name string) error {
	snap, err := store.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("engine: load snapshot %s: %w", name, err)
	}
	return e.Restore(snap)
}

// Restore replaces the session with a validated document. State is rebuilt
// aside and swapped in only on success; clusters are recomputed rather than
// trusted.
func (e *CorrelationEngine) Restore(snap *storage.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("engine: restore: %w", err)
	}

	next := &CorrelationEngine{config: e.config, scorer: e.scorer}
	next.Reset()
	for _, entity := range snap.Entities {
		entity = entity.Clone()
		next.entities[entity.ID] = entity
		next.entityOrder = append(next.entityOrder, entity.ID)
		next.graph.AddEntity(entity)
	}
	for _, r := range snap.Relationships {
		r = r.Clone()
		r.Canonicalize()
		key := r.PairKey()
		next.relationships[key] = r
		next.relOrder = append(next.relOrder, key)
		if err := next.graph.AddRelationship(r); err != nil {
			return fmt.Errorf("engine: restore: %w: %v", storage.ErrCorruptSnapshot, err)
		}
	}
	next.clusters = next.buildClusters()

	e.entities = next.entities
	e.entityOrder = next.entityOrder
	e.relationships = next.relationships
	e.relOrder = next.relOrder
	e.graph = next.graph
	e.clusters = next.clusters
	return nil
}
