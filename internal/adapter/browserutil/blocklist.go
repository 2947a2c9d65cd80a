package browserutil

import (
	"strings"

	"github.com/user/review-crawler/pkg/utils"
)

// Blocklist decides which subresources a page may load. Review text lives
// in the main document, so images, fonts and ad or tracking scripts can be
// refused without changing what gets extracted.
type Blocklist struct {
	types map[string]bool
	hosts []string
}

// NewBlocklist builds a Blocklist from resource type names (as reported by
// the DevTools protocol, e.g. "Image", "Font") and host names. Matching is
// case-insensitive; a host also matches its subdomains.
func NewBlocklist(resourceTypes, hosts []string) *Blocklist {
	b := &Blocklist{types: make(map[string]bool, len(resourceTypes))}
	for _, t := range resourceTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			b.types[t] = true
		}
	}
	for _, h := range hosts {
		if h = strings.ToLower(strings.Trim(strings.TrimSpace(h), ".")); h != "" {
			b.hosts = append(b.hosts, h)
		}
	}
	return b
}

// Empty reports whether nothing would ever be blocked.
func (b *Blocklist) Empty() bool {
	return b == nil || (len(b.types) == 0 && len(b.hosts) == 0)
}

// Blocks reports whether a request for rawURL of the given resource type
// should be refused. Documents are always allowed.
func (b *Blocklist) Blocks(resourceType, rawURL string) bool {
	if b.Empty() {
		return false
	}
	rt := strings.ToLower(resourceType)
	if rt == "document" {
		return false
	}
	if b.types[rt] {
		return true
	}
	host := utils.Hostname(rawURL)
	if host == "" {
		return false
	}
	for _, h := range b.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
