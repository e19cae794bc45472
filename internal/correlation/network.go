package correlation

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/scrypster/osintgraph/pkg/types"
)

// Network confidences.
const (
	ipExactConfidence         = 100.0
	ipv4SubnetConfidence      = 40.0
	ipv6SubnetConfidence      = 35.0
	domainExactConfidence     = 100.0
	subdomainConfidence       = 85.0
	domainLookalikeConfidence = 50.0
	accountIPConfidence       = 70.0
	accountEmailDomainConf    = 90.0
	accountWebsiteDomainConf  = 85.0
	sharedAccountIPConfidence = 70.0
	ipv4SubnetBits            = 24
	ipv6SubnetBits            = 64
)

// NetworkAlgorithm correlates infrastructure: IP entities, domain entities
// and accounts carrying ip_address, website or email attributes.
type NetworkAlgorithm struct {
	domainSimilarityThreshold float64
}

// NewNetworkAlgorithm creates a network correlator.
func NewNetworkAlgorithm(domainSimilarityThreshold float64) *NetworkAlgorithm {
	return &NetworkAlgorithm{domainSimilarityThreshold: domainSimilarityThreshold}
}

// Name implements Algorithm.
func (n *NetworkAlgorithm) Name() string { return NameNetwork }

// Correlate implements Algorithm.
func (n *NetworkAlgorithm) Correlate(entities []*types.Entity) []*types.Relationship {
	var out []*types.Relationship
	forEachPair(entities, isNetworkRelevant, func(a, b *types.Entity) {
		if rel := n.compare(a, b); rel != nil {
			out = append(out, rel)
		}
	})
	return out
}

func (n *NetworkAlgorithm) compare(a, b *types.Entity) *types.Relationship {
	switch {
	case a.Kind == types.EntityIP && b.Kind == types.EntityIP:
		return compareIPEntities(a, b)
	case a.Kind == types.EntityDomain && b.Kind == types.EntityDomain:
		return n.compareDomains(a, b)
	case a.Kind == types.EntityIP && b.Kind.IsIdentity():
		return compareAccountIP(b, a)
	case b.Kind == types.EntityIP && a.Kind.IsIdentity():
		return compareAccountIP(a, b)
	case a.Kind == types.EntityDomain && b.Kind.IsIdentity():
		return compareAccountDomain(b, a)
	case b.Kind == types.EntityDomain && a.Kind.IsIdentity():
		return compareAccountDomain(a, b)
	case a.Kind.IsIdentity() && b.Kind.IsIdentity():
		return compareAccountIPs(a, b)
	}
	return nil
}

// ipRelation describes how two addresses relate.
type ipRelation struct {
	exact  bool
	prefix netip.Prefix
}

// relateIPs reports whether two literals are identical or share a /24
// (IPv4) or /64 (IPv6) network. Unparseable literals never relate.
func relateIPs(rawA, rawB string) (ipRelation, bool) {
	ipA, errA := netip.ParseAddr(strings.TrimSpace(rawA))
	ipB, errB := netip.ParseAddr(strings.TrimSpace(rawB))
	if errA != nil || errB != nil {
		return ipRelation{}, false
	}
	ipA, ipB = ipA.Unmap().WithZone(""), ipB.Unmap().WithZone("")
	if ipA == ipB {
		return ipRelation{exact: true}, true
	}
	if ipA.Is4() != ipB.Is4() {
		return ipRelation{}, false
	}

	bits := ipv6SubnetBits
	if ipA.Is4() {
		bits = ipv4SubnetBits
	}
	prefixA, err := ipA.Prefix(bits)
	if err != nil {
		return ipRelation{}, false
	}
	if !prefixA.Contains(ipB) {
		return ipRelation{}, false
	}
	return ipRelation{prefix: prefixA}, true
}

func subnetMatch(rel ipRelation) match {
	if rel.prefix.Addr().Is4() {
		return match{kind: types.RelPotential, confidence: ipv4SubnetConfidence,
			evidence: fmt.Sprintf("Same /24 subnet (%s)", rel.prefix), matchType: "subnet_v4"}
	}
	return match{kind: types.RelPotential, confidence: ipv6SubnetConfidence,
		evidence: fmt.Sprintf("Same /64 subnet (%s)", rel.prefix), matchType: "subnet_v6"}
}

func compareIPEntities(a, b *types.Entity) *types.Relationship {
	rel, ok := relateIPs(a.Name, b.Name)
	if !ok {
		return nil
	}
	if rel.exact {
		return newRelationship(NameNetwork, a, b, types.RelSamePerson, ipExactConfidence,
			[]string{"Exact IP match"},
			map[string]interface{}{"match_type": "ip_exact", "ip": strings.TrimSpace(a.Name)})
	}
	m := subnetMatch(rel)
	return newRelationship(NameNetwork, a, b, m.kind, m.confidence, []string{m.evidence},
		map[string]interface{}{"match_type": m.matchType, "subnet": rel.prefix.String()})
}

func compareAccountIPs(a, b *types.Entity) *types.Relationship {
	ipA, okA := a.StringAttr(types.AttrKeyIPAddress)
	ipB, okB := b.StringAttr(types.AttrKeyIPAddress)
	if !okA || !okB {
		return nil
	}
	rel, ok := relateIPs(ipA, ipB)
	if !ok {
		return nil
	}
	if rel.exact {
		return newRelationship(NameNetwork, a, b, types.RelPotential, sharedAccountIPConfidence,
			[]string{fmt.Sprintf("Shared IP address (%s)", ipA)},
			map[string]interface{}{"match_type": "shared_ip", "ip": ipA})
	}
	m := subnetMatch(rel)
	return newRelationship(NameNetwork, a, b, m.kind, m.confidence, []string{m.evidence},
		map[string]interface{}{"match_type": m.matchType, "subnet": rel.prefix.String()})
}

func compareAccountIP(account, ip *types.Entity) *types.Relationship {
	addr, ok := account.StringAttr(types.AttrKeyIPAddress)
	if !ok {
		return nil
	}
	rel, ok := relateIPs(addr, ip.Name)
	if !ok || !rel.exact {
		return nil
	}
	return newRelationship(NameNetwork, account, ip, types.RelRelated, accountIPConfidence,
		[]string{fmt.Sprintf("Account IP address matches %s", strings.TrimSpace(ip.Name))},
		map[string]interface{}{"match_type": "account_ip", "ip": addr})
}

func (n *NetworkAlgorithm) compareDomains(a, b *types.Entity) *types.Relationship {
	da, db := NormalizeDomain(a.Name), NormalizeDomain(b.Name)
	if da == "" || db == "" {
		return nil
	}

	if da == db {
		return newRelationship(NameNetwork, a, b, types.RelSamePerson, domainExactConfidence,
			[]string{"Exact domain match"},
			map[string]interface{}{"match_type": "domain_exact", "domain": da})
	}

	if strings.HasSuffix(da, "."+db) || strings.HasSuffix(db, "."+da) {
		parent, child := da, db
		if strings.HasSuffix(da, "."+db) {
			parent, child = db, da
		}
		return newRelationship(NameNetwork, a, b, types.RelRelated, subdomainConfidence,
			[]string{"Subdomain relationship"},
			map[string]interface{}{"match_type": "subdomain", "parent": parent, "subdomain": child})
	}

	if sim := Similarity(da, db); sim >= n.domainSimilarityThreshold {
		return newRelationship(NameNetwork, a, b, types.RelSuspicious, domainLookalikeConfidence,
			[]string{fmt.Sprintf("Similar domain names (similarity %.2f)", sim)},
			map[string]interface{}{"match_type": "domain_similar", "similarity": sim})
	}
	return nil
}

func compareAccountDomain(account, domain *types.Entity) *types.Relationship {
	target := NormalizeDomain(domain.Name)
	if target == "" {
		return nil
	}

	if email, ok := account.IdentifierValue(types.AttrKeyEmail); ok {
		if _, emailDomain, ok := EmailParts(email); ok && emailDomain == target {
			return newRelationship(NameNetwork, account, domain, types.RelRelated, accountEmailDomainConf,
				[]string{fmt.Sprintf("Email domain matches %s", target)},
				map[string]interface{}{"match_type": "email_domain", "domain": target})
		}
	}

	if website, ok := account.StringAttr(types.AttrKeyWebsite); ok {
		if host := URLHost(website); host != "" && host == strings.TrimPrefix(target, "www.") {
			return newRelationship(NameNetwork, account, domain, types.RelRelated, accountWebsiteDomainConf,
				[]string{fmt.Sprintf("Website domain matches %s", target)},
				map[string]interface{}{"match_type": "website_domain", "domain": target})
		}
	}
	return nil
}

func isNetworkRelevant(e *types.Entity) bool {
	switch {
	case e.Kind == types.EntityIP, e.Kind == types.EntityDomain:
		return true
	case e.Kind.IsIdentity():
		for _, key := range []string{types.AttrKeyIPAddress, types.AttrKeyWebsite, types.AttrKeyEmail} {
			if _, ok := e.StringAttr(key); ok {
				return true
			}
		}
	}
	return false
}
