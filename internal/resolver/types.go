package resolver

import (
	"context"
	"fmt"
	"strings"
)

// City 城市记录
type City struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// TransportCandidate 承运人候选（只读快照）
type TransportCandidate struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	GSTIN  string `json:"gstin,omitempty"`
	CityID int64  `json:"city_id"`
	Mobile string `json:"mobile,omitempty"`
}

// Destination 目的地描述：显式城市 ID 或待解析文本
type Destination struct {
	CityID int64  `json:"city_id,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

// ParsedDestination 解析后的目的地
type ParsedDestination struct {
	Name string
	Code string
}

// Directory 城市与承运人查询接口
type Directory interface {
	Cities(ctx context.Context) ([]City, error)
	TransportersByCity(ctx context.Context, cityID int64) ([]TransportCandidate, error)
}

// LookupReason 查找失败原因
type LookupReason string

const (
	ReasonCityNotFound   LookupReason = "city-not-found"
	ReasonNoCollaborator LookupReason = "no-collaborator"
	ReasonLookupFailed   LookupReason = "lookup-failed"
)

// LookupError 单条查找失败（不影响整个批次）
type LookupError struct {
	Reason  LookupReason `json:"reason"`
	Message string       `json:"message"`
}

func (e *LookupError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// ErrorReason 实现 errorutil.Reasoner
func (e *LookupError) ErrorReason() string {
	return string(e.Reason)
}

// ParseDestination 解析目的地文本
// 支持 "NAME (CODE)"、"NAME - CODE"、单个 token（同时作为 name 和 code 尝试）
func ParseDestination(raw string) ParsedDestination {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedDestination{}
	}

	if open := strings.LastIndex(s, "("); open > 0 && strings.HasSuffix(s, ")") {
		return ParsedDestination{
			Name: strings.TrimSpace(s[:open]),
			Code: strings.TrimSpace(s[open+1 : len(s)-1]),
		}
	}

	if idx := strings.LastIndex(s, " - "); idx > 0 {
		return ParsedDestination{
			Name: strings.TrimSpace(s[:idx]),
			Code: strings.TrimSpace(s[idx+3:]),
		}
	}

	// 单 token：短且无空格时视为代码
	if !strings.ContainsAny(s, " \t") {
		return ParsedDestination{Name: s, Code: s}
	}
	return ParsedDestination{Name: s}
}
