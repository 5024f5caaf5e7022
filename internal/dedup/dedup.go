// Package dedup decides whether two milestone records describe the same
// real-world achievement and collapses duplicate groups to one record.
package dedup

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fanbasehq/harvest-cli/internal/metrics"
	"github.com/fanbasehq/harvest-cli/internal/model"
)

// Config tunes duplicate detection.
type Config struct {
	// Threshold is the 0-100 fuzzy score at or above which two records match.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	// StatCategories enables the numeric proximity check.
	StatCategories []string `yaml:"stat_categories" mapstructure:"stat_categories"`
	// StatProximity is the minimum smaller/larger ratio for two numbers to
	// count as the same stat.
	StatProximity float64 `yaml:"stat_proximity" mapstructure:"stat_proximity"`
	// StatScore is reported for category_stats matches.
	StatScore float64 `yaml:"stat_score" mapstructure:"stat_score"`
	// OfficialTokens earn a quality bonus when found in the source URL.
	OfficialTokens []string `yaml:"official_tokens" mapstructure:"official_tokens"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Threshold:      85,
		StatCategories: []string{"scoring", "assists", "rebounding", "steals", "blocks"},
		StatProximity:  0.8,
		StatScore:      80,
		OfficialTokens: []string{"wnba", "espn", "fever"},
	}
}

// Deduplicator compares and consolidates milestone records.
type Deduplicator struct {
	cfg       Config
	statCats  map[string]struct{}
	officials []string
}

// New creates a Deduplicator. Zero values in cfg fall back to defaults.
func New(cfg Config) *Deduplicator {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if len(cfg.StatCategories) == 0 {
		cfg.StatCategories = def.StatCategories
	}
	if cfg.StatProximity <= 0 {
		cfg.StatProximity = def.StatProximity
	}
	if cfg.StatScore <= 0 {
		cfg.StatScore = def.StatScore
	}
	if len(cfg.OfficialTokens) == 0 {
		cfg.OfficialTokens = def.OfficialTokens
	}

	d := &Deduplicator{cfg: cfg, statCats: make(map[string]struct{})}
	for _, c := range cfg.StatCategories {
		d.statCats[strings.ToLower(c)] = struct{}{}
	}
	for _, tok := range cfg.OfficialTokens {
		d.officials = append(d.officials, strings.ToLower(tok))
	}
	return d
}

// Check runs the duplicate test for a pair of records. The checks run
// cheapest first and the first decisive one wins.
func (d *Deduplicator) Check(a, b *model.MilestoneRecord) model.DuplicationResult {
	return d.compare(a, b, a.ContentHash(), b.ContentHash())
}

// compare is Check with content hashes already computed by the caller.
func (d *Deduplicator) compare(a, b *model.MilestoneRecord, hashA, hashB string) model.DuplicationResult {
	res := d.check(a, b, hashA, hashB)
	metrics.ObserveDedupMatch(string(res.MatchType))
	return res
}

func (d *Deduplicator) check(a, b *model.MilestoneRecord, hashA, hashB string) model.DuplicationResult {
	// Records from different categories never merge, however similar the
	// wording, and that includes identical hashes. Records without any
	// category share nothing.
	shared := intersect(lowerSet(a.Categories), lowerSet(b.Categories))
	if len(shared) > 0 && hashA == hashB {
		return model.DuplicationResult{IsDuplicate: true, Score: 100, MatchType: model.MatchExact}
	}
	if len(shared) == 0 {
		return model.DuplicationResult{Score: 0, MatchType: model.MatchNoCategoryOverlap}
	}

	titleScore := TokenSortRatio(a.Title, b.Title)
	if titleScore >= d.cfg.Threshold {
		return model.DuplicationResult{IsDuplicate: true, Score: titleScore, MatchType: model.MatchFuzzyTitle}
	}

	contentScore := TokenSetRatio(a.Title+" "+a.Value, b.Title+" "+b.Value)
	if contentScore >= d.cfg.Threshold {
		return model.DuplicationResult{IsDuplicate: true, Score: contentScore, MatchType: model.MatchFuzzyContent}
	}

	if d.isStat(a.Categories) && d.isStat(b.Categories) && d.numbersClose(a.Value, b.Value) {
		return model.DuplicationResult{IsDuplicate: true, Score: d.cfg.StatScore, MatchType: model.MatchCategoryStats}
	}

	return model.DuplicationResult{Score: math.Max(titleScore, contentScore), MatchType: model.MatchNone}
}

func (d *Deduplicator) isStat(categories []string) bool {
	for _, c := range categories {
		if _, ok := d.statCats[strings.ToLower(strings.TrimSpace(c))]; ok {
			return true
		}
	}
	return false
}

var numberRe = regexp.MustCompile(`\d+\.?\d*`)

func extractNumbers(s string) []float64 {
	var out []float64
	for _, m := range numberRe.FindAllString(strings.ReplaceAll(s, ",", ""), -1) {
		f, err := strconv.ParseFloat(strings.TrimSuffix(m, "."), 64)
		if err == nil && f > 0 {
			out = append(out, f)
		}
	}
	return out
}

func (d *Deduplicator) numbersClose(a, b string) bool {
	na, nb := extractNumbers(a), extractNumbers(b)
	for _, x := range na {
		for _, y := range nb {
			if math.Min(x, y)/math.Max(x, y) >= d.cfg.StatProximity {
				return true
			}
		}
	}
	return false
}

// Quality scores a record as a group representative. It is a crude
// heuristic: source reliability plus capped credit for field lengths and a
// bonus for official sources.
func (d *Deduplicator) Quality(r *model.MilestoneRecord) float64 {
	reliability := r.SourceReliability
	if reliability <= 0 {
		reliability = 0.5
	}
	score := reliability * 40
	score += math.Min(float64(len(r.Title))/10, 20)
	score += math.Min(float64(len(r.Value))/20, 20)
	score += math.Min(float64(len(r.Description))/50, 10)

	url := strings.ToLower(r.SourceURL)
	for _, tok := range d.officials {
		if strings.Contains(url, tok) {
			score += 10
			break
		}
	}
	return score
}

// FindBest returns the index of the highest quality record in group. Ties
// go to the earliest record. It returns -1 for an empty group.
func (d *Deduplicator) FindBest(group []*model.MilestoneRecord) int {
	best, bestScore := -1, math.Inf(-1)
	for i, r := range group {
		if s := d.Quality(r); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// Group clusters duplicate records and returns groups of indexes into
// records, ordered by each group's first member.
//
// Records are bucketed by primary category, then clustered greedily: each
// unvisited record seeds a group and every later unvisited record joins if
// it matches any current member. This can chain A~B~C into one group even
// when A and C do not match. Full transitive closure over a similarity graph
// would merge more aggressively; the category gate keeps chained merges
// bounded, so the greedy pass stays.
func (d *Deduplicator) Group(records []*model.MilestoneRecord) [][]int {
	hashes := make([]string, len(records))
	buckets := make(map[string][]int)
	var order []string
	for i, r := range records {
		hashes[i] = r.ContentHash()
		key := r.PrimaryCategory()
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], i)
	}

	var groups [][]int
	for _, key := range order {
		idx := buckets[key]
		visited := make([]bool, len(idx))
		for i := range idx {
			if visited[i] {
				continue
			}
			visited[i] = true
			group := []int{idx[i]}
			for j := i + 1; j < len(idx); j++ {
				if visited[j] {
					continue
				}
				for _, member := range group {
					if d.compare(records[member], records[idx[j]], hashes[member], hashes[idx[j]]).IsDuplicate {
						visited[j] = true
						group = append(group, idx[j])
						break
					}
				}
			}
			groups = append(groups, group)
		}
	}

	sortGroups(groups)
	return groups
}

// Consolidate collapses each duplicate group to its best record. The output
// keeps first-seen order; removed is the number of records dropped.
func (d *Deduplicator) Consolidate(records []model.MilestoneRecord) (kept []model.MilestoneRecord, groups [][]int, removed int) {
	ptrs := make([]*model.MilestoneRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}

	groups = d.Group(ptrs)
	kept = make([]model.MilestoneRecord, 0, len(groups))
	for _, g := range groups {
		kept = append(kept, records[d.Representative(records, g)])
	}
	return kept, groups, len(records) - len(kept)
}

// Representative returns the index into records of the record Consolidate
// keeps for group, or -1 for an empty group.
func (d *Deduplicator) Representative(records []model.MilestoneRecord, group []int) int {
	members := make([]*model.MilestoneRecord, len(group))
	for i, idx := range group {
		members[i] = &records[idx]
	}
	best := d.FindBest(members)
	if best < 0 {
		return -1
	}
	return group[best]
}

func sortGroups(groups [][]int) {
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
}

func lowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func intersect(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
