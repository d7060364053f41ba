package media

import (
	"fmt"
	"sort"
	"strings"
)

// Tier is a protocol-level video quality code.
type Tier int

const (
	Tier4K      Tier = 120
	Tier1080P60 Tier = 112
	Tier1080PHi Tier = 116
	Tier1080P   Tier = 80
	Tier720P60  Tier = 74
	Tier720P    Tier = 64
	Tier480P    Tier = 32
	Tier360P    Tier = 16
	TierLowest  Tier = 6
)

// NonMemberMax is the highest tier a non-privileged account may request.
const NonMemberMax = Tier1080P

// DefaultTier is used when the configuration names no tier.
const DefaultTier = Tier1080P

var tierNames = map[Tier]string{
	Tier4K:      "4K",
	Tier1080P60: "1080P60",
	Tier1080PHi: "1080P+",
	Tier1080P:   "1080P",
	Tier720P60:  "720P60",
	Tier720P:    "720P",
	Tier480P:    "480P",
	Tier360P:    "360P",
	TierLowest:  "lowest",
}

// ParseTier resolves a configured tier name such as "1080P" or "4K".
// Matching is case-insensitive.
func ParseTier(name string) (Tier, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return DefaultTier, nil
	}
	for tier, label := range tierNames {
		if strings.EqualFold(label, trimmed) {
			return tier, nil
		}
	}
	return 0, fmt.Errorf("unknown quality tier %q (valid: %s)", name, strings.Join(TierNames(), ", "))
}

// TierNames lists the recognized tier names from highest to lowest quality.
func TierNames() []string {
	tiers := make([]Tier, 0, len(tierNames))
	for tier := range tierNames {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return rank(tiers[i]) > rank(tiers[j]) })
	names := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		names = append(names, tierNames[tier])
	}
	return names
}

// rank orders tiers by visual quality rather than by raw protocol code;
// the codes are not monotonic (1080P+ is 116 but sits below 1080P60).
func rank(t Tier) int {
	switch t {
	case Tier4K:
		return 9
	case Tier1080P60:
		return 8
	case Tier1080PHi:
		return 7
	case Tier1080P:
		return 6
	case Tier720P60:
		return 5
	case Tier720P:
		return 4
	case Tier480P:
		return 3
	case Tier360P:
		return 2
	case TierLowest:
		return 1
	default:
		return 0
	}
}

// String returns the display name for the tier, or the raw code when the
// tier is not one of the named levels.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("qn%d", int(t))
}

// Clamp lowers the tier to the non-member maximum for accounts without
// membership. Privileged accounts keep the requested tier.
func (t Tier) Clamp(privileged bool) Tier {
	if privileged || rank(t) <= rank(NonMemberMax) {
		return t
	}
	return NonMemberMax
}

// UsesDASH reports whether the tier requests the adaptive (separate
// video/audio) representation. The two lowest tiers are only served as
// already-muxed streams.
func (t Tier) UsesDASH() bool {
	return t != Tier360P && t != TierLowest
}

// FormatValue returns the fnval request parameter for the tier.
func (t Tier) FormatValue() int {
	if t.UsesDASH() {
		return 4048
	}
	return 0
}
