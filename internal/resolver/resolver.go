package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// MatchStep 城市匹配命中的步骤
type MatchStep int

const (
	StepNone MatchStep = iota
	StepExplicitID
	StepExactCode
	StepCodeFold
	StepNameFold
	StepNameContains
	StepCodeInName
)

func (s MatchStep) String() string {
	switch s {
	case StepExplicitID:
		return "explicit-id"
	case StepExactCode:
		return "exact-code"
	case StepCodeFold:
		return "code-ci"
	case StepNameFold:
		return "name-ci"
	case StepNameContains:
		return "name-contains"
	case StepCodeInName:
		return "code-in-name"
	default:
		return "none"
	}
}

// resolution 单个分组的缓存结果
type resolution struct {
	candidate *TransportCandidate
	err       *LookupError
}

// CityCache 按分组键（GR 号）缓存解析结果，单次批量任务内有效
type CityCache map[string]resolution

// NewCityCache 创建分组缓存
func NewCityCache() CityCache {
	return make(CityCache)
}

// Resolver 承运人解析器
type Resolver struct {
	dir    Directory
	logger logger.Logger
}

// NewResolver 创建承运人解析器
func NewResolver(dir Directory, log logger.Logger) *Resolver {
	return &Resolver{dir: dir, logger: log}
}

// ResolveForDestination 解析目的地对应的承运人
// cache 非空时按 groupKey 记忆结果；同组后续条目不再查询目录。查询本身出错（lookup-failed）不缓存
func (r *Resolver) ResolveForDestination(
	ctx context.Context,
	dest Destination,
	groupKey string,
	cache CityCache,
) (*TransportCandidate, *LookupError) {
	if cache != nil && groupKey != "" {
		if hit, ok := cache[groupKey]; ok {
			return hit.candidate, hit.err
		}
	}

	candidate, lerr := r.resolve(ctx, dest)

	if cache != nil && groupKey != "" && (lerr == nil || lerr.Reason != ReasonLookupFailed) {
		cache[groupKey] = resolution{candidate: candidate, err: lerr}
	}
	return candidate, lerr
}

// resolve 执行城市级联匹配 + 承运人选择
func (r *Resolver) resolve(ctx context.Context, dest Destination) (*TransportCandidate, *LookupError) {
	cityID := dest.CityID
	step := StepExplicitID

	// 1. 无显式城市 ID 时按文本级联匹配
	if cityID == 0 {
		parsed := ParseDestination(dest.Raw)
		if parsed.Name == "" && parsed.Code == "" {
			return nil, &LookupError{Reason: ReasonCityNotFound, Message: "destination is empty"}
		}

		cities, err := r.dir.Cities(ctx)
		if err != nil {
			r.logger.Errorf(ctx, "[Resolver] load cities failed: %v", err)
			return nil, &LookupError{Reason: ReasonLookupFailed, Message: err.Error()}
		}

		var city *City
		city, step = MatchCity(cities, parsed)
		if city == nil {
			return nil, &LookupError{Reason: ReasonCityNotFound, Message: "no city matches " + strings.TrimSpace(dest.Raw)}
		}
		cityID = city.ID
	}

	// 2. 查询城市下的承运人
	candidates, err := r.dir.TransportersByCity(ctx, cityID)
	if err != nil {
		r.logger.Errorf(ctx, "[Resolver] load transporters failed: city=%d, err=%v", cityID, err)
		return nil, &LookupError{Reason: ReasonLookupFailed, Message: err.Error()}
	}

	selected := SelectCandidate(candidates)
	if selected == nil {
		return nil, &LookupError{Reason: ReasonNoCollaborator, Message: "no transporter registered for destination city"}
	}

	r.logger.Debugf(ctx, "[Resolver] resolved city=%d via %s, transporter=%d (%s)", cityID, step, selected.ID, selected.Name)
	return selected, nil
}

// MatchCity 城市级联匹配，先精确后模糊，命中即返回
func MatchCity(cities []City, p ParsedDestination) (*City, MatchStep) {
	code := strings.TrimSpace(p.Code)
	name := strings.TrimSpace(p.Name)
	lcode := strings.ToLower(code)
	lname := strings.ToLower(name)

	find := func(match func(c *City) bool) *City {
		for i := range cities {
			if match(&cities[i]) {
				return &cities[i]
			}
		}
		return nil
	}

	if code != "" {
		if c := find(func(c *City) bool { return c.Code == code }); c != nil {
			return c, StepExactCode
		}
		if c := find(func(c *City) bool { return c.Code != "" && strings.EqualFold(c.Code, code) }); c != nil {
			return c, StepCodeFold
		}
	}

	if name != "" {
		if c := find(func(c *City) bool { return strings.EqualFold(c.Name, name) }); c != nil {
			return c, StepNameFold
		}
		if c := find(func(c *City) bool {
			return c.Name != "" && strings.Contains(strings.ToLower(c.Name), lname)
		}); c != nil {
			return c, StepNameContains
		}
	}

	if code != "" {
		if c := find(func(c *City) bool {
			return c.Name != "" && strings.Contains(strings.ToLower(c.Name), lcode)
		}); c != nil {
			return c, StepCodeInName
		}
	}

	return nil, StepNone
}

// SelectCandidate 按名称排序后选择第一个有 GSTIN 的承运人，都没有则取第一个
func SelectCandidate(candidates []TransportCandidate) *TransportCandidate {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]TransportCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	for i := range sorted {
		if strings.TrimSpace(sorted[i].GSTIN) != "" {
			return &sorted[i]
		}
	}
	return &sorted[0]
}
