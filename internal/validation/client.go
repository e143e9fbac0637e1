package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/move-sure/ss-transport-sub000/pkg/ewbno"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// Reason 校验失败原因
type Reason string

const (
	ReasonInvalid      Reason = "invalid"
	ReasonRequestError Reason = "request-error"
)

// maxBodyBytes 响应体读取上限
const maxBodyBytes = 4 << 20

// EndpointPath 上游校验接口路径，拼接在 base_url 之后
const EndpointPath = "/api/v1/getEwayBillData/"

// Cache 校验缓存接口
type Cache interface {
	Get(ctx context.Context, ewbID string) (json.RawMessage, bool)
	Put(ctx context.Context, ewbID string, payload json.RawMessage) error
}

// Recorder 最近一次校验结果持久化
type Recorder interface {
	RecordValidation(ctx context.Context, record *Record) error
}

// Record 校验记录
type Record struct {
	EwbID       string
	Valid       bool
	Reason      Reason
	Message     string
	Payload     json.RawMessage
	ValidatedAt time.Time
}

// Result 校验成功结果
type Result struct {
	EwbID     string          `json:"ewb_number"`
	Payload   json.RawMessage `json:"payload"`
	FromCache bool            `json:"from_cache"`
}

// Failure 校验失败（不会被缓存）
type Failure struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("ewb validation %s: %s", f.Reason, f.Message)
}

// ErrorReason 实现 errorutil.Reasoner
func (f *Failure) ErrorReason() string {
	return string(f.Reason)
}

// Config 校验客户端配置
type Config struct {
	BaseURL      string
	AccountGSTIN string
	// Timeout 单次请求超时，0 表示不限制
	Timeout time.Duration
}

// Client EWB 校验客户端
type Client struct {
	cfg      Config
	http     *http.Client
	cache    Cache
	recorder Recorder
	logger   logger.Logger
	wg       sync.WaitGroup
}

// NewClient 创建校验客户端，httpClient 为 nil 时使用默认客户端
func NewClient(cfg Config, httpClient *http.Client, cache Cache, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		cache:  cache,
		logger: log,
	}
}

// SetRecorder 设置持久化记录器（可选）
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// Validate 校验 EWB 号
// 先查缓存；未命中时调用上游并分类，只有成功结果写入缓存。不会返回 Go error
func (c *Client) Validate(ctx context.Context, ewbID string) (*Result, *Failure) {
	res, failure, _ := c.validate(ctx, ewbID)
	return res, failure
}

// validate remote 表示是否真正调用了上游
func (c *Client) validate(ctx context.Context, ewbID string) (res *Result, failure *Failure, remote bool) {
	id := ewbno.Clean(ewbID)
	if len(id) != ewbno.Length {
		return nil, &Failure{Reason: ReasonInvalid, Message: fmt.Sprintf("malformed e-way bill number %q", ewbID)}, false
	}

	// 1. 缓存
	if c.cache != nil {
		if payload, ok := c.cache.Get(ctx, id); ok {
			c.logger.Debugf(ctx, "[ValidationClient] cache hit: %s", id)
			return &Result{EwbID: id, Payload: payload, FromCache: true}, nil, false
		}
	}

	// 2. 调用上游
	status, body, err := c.fetch(ctx, id)
	if err != nil {
		c.logger.Warnf(ctx, "[ValidationClient] request failed: ewb=%s, err=%v", id, err)
		failure := &Failure{Reason: ReasonRequestError, Message: err.Error()}
		c.record(ctx, id, nil, failure)
		return nil, failure, true
	}

	// 3. 分类
	cls := classify(status, body)
	if cls.reason != "" {
		c.logger.Infof(ctx, "[ValidationClient] ewb=%s classified as %s: %s", id, cls.reason, cls.message)
		failure := &Failure{Reason: cls.reason, Message: cls.message}
		c.record(ctx, id, body, failure)
		return nil, failure, true
	}

	payload := json.RawMessage(body)
	if c.cache != nil {
		if err := c.cache.Put(ctx, id, payload); err != nil {
			c.logger.Warnf(ctx, "[ValidationClient] cache put failed: ewb=%s, err=%v", id, err)
		}
	}
	c.record(ctx, id, payload, nil)

	return &Result{EwbID: id, Payload: payload}, nil, true
}

// Outcome ValidateMany 单条结果
type Outcome struct {
	EwbID   string   `json:"ewb_number"`
	Result  *Result  `json:"result,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

// Pacer 调用间隔控制
type Pacer interface {
	Wait(ctx context.Context) error
}

// ValidateMany 顺序校验多个 EWB；pacer 仅在真实请求后等待，ctx 取消时提前结束
func (c *Client) ValidateMany(ctx context.Context, ewbIDs []string, pacer Pacer) []Outcome {
	out := make([]Outcome, 0, len(ewbIDs))
	for i, raw := range ewbIDs {
		if ctx.Err() != nil {
			break
		}
		res, failure, remote := c.validate(ctx, raw)
		out = append(out, Outcome{EwbID: ewbno.Clean(raw), Result: res, Failure: failure})

		if pacer == nil || i == len(ewbIDs)-1 || !remote {
			continue
		}
		if err := pacer.Wait(ctx); err != nil {
			break
		}
	}
	return out
}

// Flush 等待异步持久化完成
func (c *Client) Flush() {
	c.wg.Wait()
}

// fetch 调用上游校验接口
func (c *Client) fetch(ctx context.Context, id string) (int, []byte, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("action", "GetEwayBill")
	q.Set("gstin", c.cfg.AccountGSTIN)
	q.Set("eway_bill_number", id)
	u := c.cfg.BaseURL + EndpointPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read validation response failed: %w", err)
	}
	return resp.StatusCode, body, nil
}

// record 异步持久化，失败只记录日志
func (c *Client) record(ctx context.Context, id string, payload []byte, failure *Failure) {
	if c.recorder == nil {
		return
	}
	rec := &Record{
		EwbID:       id,
		Valid:       failure == nil,
		Payload:     payload,
		ValidatedAt: time.Now(),
	}
	if failure != nil {
		rec.Reason = failure.Reason
		rec.Message = failure.Message
	}

	bg := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.recorder.RecordValidation(bg, rec); err != nil {
			c.logger.Errorf(bg, "[ValidationClient] persist validation failed: ewb=%s, err=%v", id, err)
		}
	}()
}
