package engine

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/internal/correlation"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/file"
	"github.com/scrypster/osintgraph/pkg/types"
)

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestEngine creates an engine whose clock advances one second per call.
func newTestEngine(t *testing.T) *CorrelationEngine {
	t.Helper()

	tick := 0
	cfg := DefaultConfig()
	cfg.Clock = func() time.Time {
		tick++
		return testEpoch.Add(time.Duration(tick) * time.Second)
	}

	eng, err := NewCorrelationEngine(cfg)
	require.NoError(t, err)
	return eng
}

func found(username, platform string, metadata map[string]interface{}) types.Finding {
	return types.Finding{
		Username:     username,
		PlatformName: platform,
		ProfileURL:   "https://" + platform + ".example/" + username,
		Status:       types.FindingFound,
		Metadata:     metadata,
	}
}

// johnDoeFindings is the canonical two-platform identity.
func johnDoeFindings() []types.Finding {
	return []types.Finding{
		found("john_doe", "twitter", map[string]interface{}{"email": "john.doe@example.com"}),
		found("johndoe", "github", map[string]interface{}{"email": "john.doe@example.com"}),
	}
}

const (
	twitterJohn = "ent:account:twitter:john_doe"
	githubJohn  = "ent:account:github:johndoe"
	johnEmail   = "ent:email:john.doe@example.com"
)

// relationshipFor returns the stored relationship of an unordered pair.
func relationshipFor(t *testing.T, eng *CorrelationEngine, a, b string) *types.Relationship {
	t.Helper()
	for _, r := range eng.GetRelationships(RelationshipFilter{EntityID: a}) {
		if r.Other(a) == b {
			return r
		}
	}
	t.Fatalf("no relationship between %s and %s", a, b)
	return nil
}

// pairSignature reduces relationships to pair -> kind/confidence.
func pairSignature(rels []*types.Relationship) map[string]string {
	out := make(map[string]string, len(rels))
	for _, r := range rels {
		out[r.PairKey()] = fmt.Sprintf("%s/%.6f", r.Kind, r.Confidence)
	}
	return out
}

func TestNewCorrelationEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Correlation.FuzzyThreshold = 1.5

	_, err := NewCorrelationEngine(cfg)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
}

func TestProcessFindings_Empty(t *testing.T) {
	eng := newTestEngine(t)

	result := eng.ProcessFindings(nil)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Relationships)
	assert.Empty(t, result.Clusters)
	assert.NotNil(t, result.Entities)
	assert.NotNil(t, result.Relationships)
	assert.NotNil(t, result.Clusters)
	assert.Equal(t, 0.0, result.ConfidenceAverage)
	assert.Equal(t, "No entities to correlate.", result.Summary)

	assert.Empty(t, eng.GetRelationships(RelationshipFilter{EntityID: "ent:account:x:y"}))
	assert.Empty(t, eng.Entities())
	assert.Empty(t, eng.Clusters())
	assert.Equal(t, GraphStatistics{}, eng.Graph().Statistics())
}

func TestProcessFindings_SkipsFindingsNotFound(t *testing.T) {
	eng := newTestEngine(t)

	result := eng.ProcessFindings([]types.Finding{
		{Username: "ghost", PlatformName: "reddit", Status: types.FindingNotFound},
		{Username: "broken", PlatformName: "reddit", Status: types.FindingError},
		{Username: "  ", PlatformName: "reddit", Status: types.FindingFound},
	})
	assert.Empty(t, result.Entities)
}

func TestProcessFindings_ExtractsEntities(t *testing.T) {
	eng := newTestEngine(t)

	eng.ProcessFindings([]types.Finding{
		found("NightOwl", "GitHub", map[string]interface{}{
			"email":        "Night.Owl@Example.com",
			"ip_address":   "192.168.1.10",
			"bio":          "security researcher",
			"followers":    42,
			"created_date": "2020-01-15",
			"source":       "sherlock",
			"nested":       map[string]interface{}{"unsupported": true},
		}),
	})

	account, ok := eng.Entity("ent:account:github:nightowl")
	require.True(t, ok)
	assert.Equal(t, types.EntityAccount, account.Kind)
	assert.Equal(t, "NightOwl", account.Name)
	assert.Equal(t, []string{"GitHub", "sherlock"}, account.Sources)
	assert.Equal(t, testEpoch.Add(time.Second), account.CreatedAt)

	platform, _ := account.StringAttr(types.AttrKeyPlatform)
	assert.Equal(t, "GitHub", platform)
	profile, _ := account.StringAttr(types.AttrKeyProfileURL)
	assert.Equal(t, "https://GitHub.example/NightOwl", profile)
	_, ok = account.TimeAttr(types.AttrKeyCreatedDate)
	assert.True(t, ok, "date strings become timestamps")
	_, ok = account.Attr("nested")
	assert.False(t, ok, "unsupported shapes are dropped")

	email, ok := eng.Entity("ent:email:night.owl@example.com")
	require.True(t, ok)
	assert.Equal(t, types.EntityEmail, email.Kind)
	assert.Equal(t, "night.owl@example.com", email.Name)

	ip, ok := eng.Entity("ent:ip:192.168.1.10")
	require.True(t, ok)
	assert.Equal(t, types.EntityIP, ip.Kind)

	ids := make([]string, 0, 3)
	for _, e := range eng.Entities() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"ent:account:github:nightowl", "ent:email:night.owl@example.com", "ent:ip:192.168.1.10"}, ids,
		"first-seen order")
}

func TestProcessFindings_InvalidDerivedValuesAreSkipped(t *testing.T) {
	eng := newTestEngine(t)

	result := eng.ProcessFindings([]types.Finding{
		found("someone", "gitlab", map[string]interface{}{"email": "not-an-email", "ip_address": "999.1.1.1"}),
	})
	require.Len(t, result.Entities, 1)
	assert.Equal(t, types.EntityAccount, result.Entities[0].Kind)
}

func TestProcessFindings_JohnDoeAcrossPlatforms(t *testing.T) {
	eng := newTestEngine(t)

	result := eng.ProcessFindings(johnDoeFindings())
	require.Len(t, result.Entities, 3, "the shared email is one entity")
	require.Len(t, result.Relationships, 3)

	accounts := relationshipFor(t, eng, twitterJohn, githubJohn)
	assert.Equal(t, types.RelSamePerson, accounts.Kind, "email match outranks the username pattern match")
	assert.Equal(t, 100.0, accounts.Confidence)
	assert.Equal(t, correlation.NameEmail, accounts.Metadata["algorithm"])
	assert.Equal(t, 100.0, accounts.Metadata["raw_confidence"])
	assert.Equal(t, githubJohn, accounts.EntityA, "canonical endpoint order")

	for _, account := range []string{twitterJohn, githubJohn} {
		r := relationshipFor(t, eng, account, johnEmail)
		assert.Equal(t, types.RelSamePerson, r.Kind)
		assert.Equal(t, 100.0, r.Confidence)
		assert.Equal(t, correlation.NameEmail, r.Metadata["algorithm"])
	}

	require.Len(t, result.Clusters, 1)
	cluster := result.Clusters[0]
	assert.Equal(t, []string{twitterJohn, johnEmail, githubJohn}, cluster.Entities)
	assert.Equal(t, twitterJohn, cluster.Representative, "degree tie goes to the first-seen member")
	assert.Equal(t, "cluster:"+twitterJohn, cluster.ID)
	assert.Len(t, cluster.Relationships, 3)
	assert.Equal(t, accounts.ID, cluster.Relationships[0], "first-discovered order")
	// mean 100 * density 0.3 * penalty 1.0
	assert.InDelta(t, 30.0, cluster.Confidence, 1e-9)

	assert.Equal(t, 100.0, result.ConfidenceAverage)
	assert.Contains(t, result.Summary, "Correlated 3 entities (2 account, 1 email)")
	assert.Contains(t, result.Summary, "3 relationships (3 same_person)")
	assert.Contains(t, result.Summary, "1 cluster found")
}

func TestProcessFindings_SoleReporterIsNotLinkedToItsOwnValue(t *testing.T) {
	eng := newTestEngine(t)

	result := eng.ProcessFindings([]types.Finding{
		found("nightowl", "forum", map[string]interface{}{
			"email":      "night.owl@example.com",
			"ip_address": "10.0.0.5",
		}),
	})
	require.Len(t, result.Entities, 3)
	assert.Empty(t, result.Relationships)

	// a second reporter turns both values into shared evidence
	result = eng.ProcessFindings([]types.Finding{
		found("zzqq", "reddit", map[string]interface{}{"email": "night.owl@example.com"}),
	})
	relationshipFor(t, eng, "ent:account:forum:nightowl", "ent:email:night.owl@example.com")
	relationshipFor(t, eng, "ent:account:reddit:zzqq", "ent:email:night.owl@example.com")
	assert.Empty(t, eng.GetRelationships(RelationshipFilter{EntityID: "ent:ip:10.0.0.5"}),
		"the ip still has one reporter")
	require.Len(t, result.Clusters, 1)
	assert.Len(t, result.Clusters[0].Entities, 3)
}

func TestProcessFindings_AccountsLinkToSharedIP(t *testing.T) {
	eng := newTestEngine(t)

	eng.ProcessFindings([]types.Finding{
		found("johndoe", "github", map[string]interface{}{"ip_address": "10.0.0.5"}),
		found("zzqq", "reddit", map[string]interface{}{"ip_address": "10.0.0.5"}),
	})

	const ip = "ent:ip:10.0.0.5"
	for _, account := range []string{githubJohn, "ent:account:reddit:zzqq"} {
		r := relationshipFor(t, eng, account, ip)
		assert.Equal(t, types.RelRelated, r.Kind)
		assert.Equal(t, correlation.NameNetwork, r.Metadata["algorithm"])
		assert.Equal(t, 70.0, r.Metadata["raw_confidence"])
		assert.GreaterOrEqual(t, r.Confidence, 70.0)
	}

	shared := relationshipFor(t, eng, githubJohn, "ent:account:reddit:zzqq")
	assert.Equal(t, types.RelPotential, shared.Kind)
	assert.Equal(t, 70.0, shared.Metadata["raw_confidence"])
}

func TestProcessFindings_DerivedEntitiesLinkToEachOther(t *testing.T) {
	eng := newTestEngine(t)

	eng.ProcessFindings([]types.Finding{
		found("nightowl", "forum", map[string]interface{}{"email": "night.owl@example.com"}),
		found("hoot", "board", map[string]interface{}{"email": "nightowl@example.com"}),
	})

	r := relationshipFor(t, eng, "ent:email:night.owl@example.com", "ent:email:nightowl@example.com")
	assert.Equal(t, types.RelPotential, r.Kind)
	assert.Equal(t, 65.0, r.Metadata["raw_confidence"])

	accounts := relationshipFor(t, eng, "ent:account:forum:nightowl", "ent:account:board:hoot")
	assert.Equal(t, correlation.NameEmail, accounts.Metadata["algorithm"])
}

func TestProcessFindings_SubnetNeighbors(t *testing.T) {
	eng := newTestEngine(t)

	eng.ProcessFindings([]types.Finding{
		found("alpha", "forum", map[string]interface{}{"ip_address": "192.168.1.10"}),
		found("zulu_quebec", "board", map[string]interface{}{"ip_address": "192.168.1.20"}),
	})

	r := relationshipFor(t, eng, "ent:ip:192.168.1.10", "ent:ip:192.168.1.20")
	assert.Equal(t, types.RelPotential, r.Kind)
	assert.Equal(t, 40.0, r.Metadata["raw_confidence"])
	assert.GreaterOrEqual(t, r.Confidence, 40.0)
	require.NotEmpty(t, r.Evidence)
	assert.Contains(t, r.Evidence[0], "/24")
}

func TestProcessFindings_UniqueEmailsProduceNothing(t *testing.T) {
	eng := newTestEngine(t)

	findings := make([]types.Finding, 0, 100)
	for i := 0; i < 100; i++ {
		sum := sha256.Sum256([]byte(fmt.Sprint(i)))
		// letters only, so no digit-suffix or fuzzy coincidences
		name := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return 'g' + (r - '0')
			}
			return r
		}, fmt.Sprintf("%x", sum[:8]))
		findings = append(findings, found(name, "site", map[string]interface{}{
			"email": fmt.Sprintf("%s@domain-%d.example", name, i),
		}))
	}

	result := eng.ProcessFindings(findings)
	assert.Len(t, result.Entities, 200)
	assert.Empty(t, result.Relationships)
	assert.Empty(t, result.Clusters)
	assert.Equal(t, 0.0, result.ConfidenceAverage)
}

func TestProcessFindings_Deterministic(t *testing.T) {
	findings := append(johnDoeFindings(),
		found("alpha", "forum", map[string]interface{}{"ip_address": "192.168.1.10"}),
		found("alpha", "board", map[string]interface{}{"ip_address": "192.168.1.20", "bio": "hello there world"}),
	)

	first := newTestEngine(t).ProcessFindings(findings)
	second := newTestEngine(t).ProcessFindings(findings)
	assert.Equal(t, first, second)
}

func TestProcessFindings_Idempotent(t *testing.T) {
	eng := newTestEngine(t)

	first := eng.ProcessFindings(johnDoeFindings())
	second := eng.ProcessFindings(johnDoeFindings())

	assert.Equal(t, first.Entities, second.Entities, "no duplicate entities, creation times untouched")
	assert.Equal(t, first.Relationships, second.Relationships, "existing relationships win ties")
	assert.Equal(t, first.Clusters, second.Clusters)
}

func TestProcessFindings_Symmetric(t *testing.T) {
	a := found("darkstar", "reddit", map[string]interface{}{"location": "Berlin, Germany", "created_date": "2021-03-01"})
	b := found("dark_star", "twitter", map[string]interface{}{"location": "Berlin", "created_date": "2021-03-03"})

	forward := newTestEngine(t).ProcessFindings([]types.Finding{a, b})
	backward := newTestEngine(t).ProcessFindings([]types.Finding{b, a})

	require.NotEmpty(t, forward.Relationships)
	assert.Equal(t, pairSignature(forward.Relationships), pairSignature(backward.Relationships))
}

func TestProcessFindings_ConfidenceBounds(t *testing.T) {
	eng := newTestEngine(t)
	result := eng.ProcessFindings(append(johnDoeFindings(),
		found("johndoe", "gitlab", map[string]interface{}{
			"email":        "john.doe@example.com",
			"bio":          "Full-stack developer and open source enthusiast",
			"website":      "https://johndoe.dev",
			"created_date": "2019-06-01",
		}),
		found("john.doe", "mastodon", map[string]interface{}{
			"bio":          "Full-stack developer and open source enthusiast",
			"website":      "http://www.johndoe.dev/",
			"created_date": "2019-06-01",
		}),
	))

	require.NotEmpty(t, result.Relationships)
	for _, r := range result.Relationships {
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 100.0)
	}
	for _, c := range result.Clusters {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 100.0)
	}
}

// fixedAlgorithm proposes one relationship between the first two entities.
type fixedAlgorithm struct {
	name       string
	kind       types.RelationshipKind
	confidence float64
}

func (f fixedAlgorithm) Name() string { return f.name }

func (f fixedAlgorithm) Correlate(entities []*types.Entity) []*types.Relationship {
	if len(entities) < 2 {
		return nil
	}
	// reversed endpoints: the engine canonicalizes
	return []*types.Relationship{{
		ID:         "rel:" + f.name,
		EntityA:    entities[1].ID,
		EntityB:    entities[0].ID,
		Kind:       f.kind,
		Confidence: f.confidence,
		Evidence:   []string{f.name + " evidence"},
	}}
}

func TestProcessFindings_DeduplicatesByPair(t *testing.T) {
	findings := []types.Finding{found("first", "a", nil), found("second", "b", nil)}

	tests := []struct {
		name       string
		algorithms []correlation.Algorithm
		wantID     string
		wantRaw    float64
	}{
		{
			name: "higher confidence later",
			algorithms: []correlation.Algorithm{
				fixedAlgorithm{"low", types.RelPotential, 85},
				fixedAlgorithm{"high", types.RelSamePerson, 95},
			},
			wantID:  "rel:high",
			wantRaw: 95,
		},
		{
			name: "higher confidence first",
			algorithms: []correlation.Algorithm{
				fixedAlgorithm{"high", types.RelSamePerson, 95},
				fixedAlgorithm{"low", types.RelPotential, 85},
			},
			wantID:  "rel:high",
			wantRaw: 95,
		},
		{
			name: "tie keeps the earlier proposal",
			algorithms: []correlation.Algorithm{
				fixedAlgorithm{"earlier", types.RelRelated, 90},
				fixedAlgorithm{"later", types.RelSamePerson, 90},
			},
			wantID:  "rel:earlier",
			wantRaw: 90,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t)
			eng.algorithms = tt.algorithms

			result := eng.ProcessFindings(findings)
			require.Len(t, result.Relationships, 1)
			r := result.Relationships[0]
			assert.Equal(t, tt.wantID, r.ID)
			assert.Equal(t, tt.wantRaw, r.Metadata["raw_confidence"])
			assert.Less(t, r.EntityA, r.EntityB)
		})
	}
}

func TestProcessFindings_StrongerProposalReplacesExisting(t *testing.T) {
	eng := newTestEngine(t)
	eng.algorithms = []correlation.Algorithm{fixedAlgorithm{"weak", types.RelPotential, 60}}
	first := eng.ProcessFindings([]types.Finding{found("first", "a", nil), found("second", "b", nil)})
	require.Len(t, first.Relationships, 1)
	createdAt := first.Relationships[0].CreatedAt

	eng.algorithms = []correlation.Algorithm{fixedAlgorithm{"strong", types.RelSamePerson, 90}}
	second := eng.ProcessFindings(nil)
	require.Len(t, second.Relationships, 1)
	assert.Equal(t, "rel:strong", second.Relationships[0].ID)
	assert.Equal(t, createdAt, second.Relationships[0].CreatedAt, "discovery time is kept")

	eng.algorithms = []correlation.Algorithm{fixedAlgorithm{"weaker", types.RelPotential, 10}}
	third := eng.ProcessFindings(nil)
	assert.Equal(t, "rel:strong", third.Relationships[0].ID)
}

func TestGetRelationships_Filters(t *testing.T) {
	eng := newTestEngine(t)
	findings := johnDoeFindings()
	findings[0].Metadata["ip_address"] = "192.168.1.10"
	findings[1].Metadata["ip_address"] = "192.168.1.20"
	eng.ProcessFindings(findings)

	ipA, ipB := "ent:ip:192.168.1.10", "ent:ip:192.168.1.20"
	require.Len(t, eng.GetRelationships(RelationshipFilter{}), 4)

	same := eng.GetRelationships(RelationshipFilter{Kind: types.RelSamePerson})
	require.Len(t, same, 3)
	assert.Equal(t, types.PairKey(twitterJohn, githubJohn), same[0].PairKey())

	potential := eng.GetRelationships(RelationshipFilter{Kind: types.RelPotential})
	require.Len(t, potential, 1)
	assert.Equal(t, types.PairKey(ipA, ipB), potential[0].PairKey())

	assert.Len(t, eng.GetRelationships(RelationshipFilter{EntityID: ipA}), 1, "each ip has a single reporter")
	assert.Len(t, eng.GetRelationships(RelationshipFilter{EntityID: twitterJohn, Kind: types.RelPotential}), 0)
	assert.Empty(t, eng.GetRelationships(RelationshipFilter{Kind: types.RelSuspicious}))
	assert.Len(t, eng.GetRelationships(RelationshipFilter{MinConfidence: 100}), 3)
	assert.Empty(t, eng.GetRelationships(RelationshipFilter{MinConfidence: 100.5}))
	assert.Empty(t, eng.GetRelationships(RelationshipFilter{EntityID: "ent:account:none:nobody"}))

	rels := eng.GetRelationships(RelationshipFilter{})
	rels[0].Evidence[0] = "mutated"
	assert.NotEqual(t, "mutated", eng.GetRelationships(RelationshipFilter{})[0].Evidence[0], "results are copies")
}

func TestSetOnCorrelationComplete(t *testing.T) {
	eng := newTestEngine(t)

	var received *types.CorrelationResult
	eng.SetOnCorrelationComplete(func(result *types.CorrelationResult) {
		received = result
	})

	eng.ProcessFindings(johnDoeFindings())
	require.NotNil(t, received)
	assert.Len(t, received.Entities, 3)
	assert.Len(t, received.Relationships, 3)
}

func TestReset(t *testing.T) {
	eng := newTestEngine(t)
	eng.ProcessFindings(johnDoeFindings())

	eng.Reset()
	result := eng.Result()
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Relationships)
	assert.Empty(t, result.Clusters)
	assert.Equal(t, 0, eng.Graph().NodeCount())
}

func TestSaveAndLoad(t *testing.T) {
	eng := newTestEngine(t)
	want := eng.ProcessFindings(johnDoeFindings())

	path := filepath.Join(t.TempDir(), "state", "session.json")
	require.NoError(t, eng.Save(path))

	restored := newTestEngine(t)
	require.NoError(t, restored.Load(path))
	got := restored.Result()

	require.Len(t, got.Entities, len(want.Entities))
	for i := range want.Entities {
		assert.Equal(t, want.Entities[i].ID, got.Entities[i].ID)
		assert.True(t, want.Entities[i].CreatedAt.Equal(got.Entities[i].CreatedAt))
	}
	assert.Equal(t, pairSignature(want.Relationships), pairSignature(got.Relationships))
	assert.Equal(t, want.Clusters, got.Clusters, "clusters are recomputed identically")
	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, 3, restored.Graph().EdgeCount())
}

func TestLoad_ReplacesState(t *testing.T) {
	source := newTestEngine(t)
	source.ProcessFindings(johnDoeFindings())
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, source.Save(path))

	eng := newTestEngine(t)
	eng.ProcessFindings([]types.Finding{found("unrelated", "forum", nil)})
	require.NoError(t, eng.Load(path))

	_, ok := eng.Entity("ent:account:forum:unrelated")
	assert.False(t, ok, "load replaces rather than merges")
	assert.Len(t, eng.Entities(), 3)
}

func TestLoad_FailureLeavesStateUntouched(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"version": 1, "entities": [`), 0o600))

	unknownKind := filepath.Join(dir, "unknown-kind.json")
	require.NoError(t, os.WriteFile(unknownKind, []byte(`{
		"version": 1,
		"saved_at": "2024-05-01T00:00:00Z",
		"entities": [
			{"id": "ent:account:a:x", "kind": "account", "name": "x", "created_at": "2024-05-01T00:00:00Z"},
			{"id": "ent:account:b:y", "kind": "account", "name": "y", "created_at": "2024-05-01T00:00:00Z"}
		],
		"relationships": [
			{"id": "rel:1", "entity_a": "ent:account:a:x", "entity_b": "ent:account:b:y", "kind": "friend",
			 "confidence": 50, "evidence": ["e"], "created_at": "2024-05-01T00:00:00Z"}
		],
		"clusters": []
	}`), 0o600))

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"truncated document", corrupt, storage.ErrCorruptSnapshot},
		{"unknown relationship kind", unknownKind, storage.ErrCorruptSnapshot},
		{"missing file", filepath.Join(dir, "absent.json"), storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t)
			before := eng.ProcessFindings(johnDoeFindings())

			err := eng.Load(tt.path)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, before, eng.Result())
		})
	}
}

func TestSaveToAndLoadFrom(t *testing.T) {
	ctx := context.Background()
	store, err := file.NewStore(t.TempDir())
	require.NoError(t, err)

	eng := newTestEngine(t)
	eng.ProcessFindings(johnDoeFindings())
	require.NoError(t, eng.SaveTo(ctx, store, "case-1"))

	restored := newTestEngine(t)
	require.NoError(t, restored.LoadFrom(ctx, store, "case-1"))
	assert.Len(t, restored.Entities(), 3)
	assert.Len(t, restored.Clusters(), 1)

	err = restored.LoadFrom(ctx, store, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	assert.Len(t, restored.Entities(), 3)

	err = eng.SaveTo(ctx, store, "../escape")
	assert.True(t, errors.Is(err, storage.ErrInvalidInput), "got %v", err)
}
