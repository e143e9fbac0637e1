package update

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/move-sure/ss-transport-sub000/pkg/ewbno"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// maxBodyBytes 响应体读取上限
const maxBodyBytes = 4 << 20

// Stage 出错阶段
type Stage string

const (
	StageApply    Stage = "apply"
	StageDocument Stage = "document"
)

// Outcome 单条更新结果
type Outcome struct {
	EwbID           string    `json:"ewb_number"`
	Success         bool      `json:"success"`
	TransporterID   int64     `json:"transporter_id,omitempty"`
	TransporterName string    `json:"transporter_name,omitempty"`
	UpdatedDate     string    `json:"updated_date,omitempty"`
	DocumentURL     string    `json:"document_url,omitempty"`
	ErrorReason     string    `json:"error_reason,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// UpdateError 第一次调用失败（结构化错误或网络错误）
type UpdateError struct {
	Stage      Stage  `json:"stage"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
	Transport  bool   `json:"transport"` // 网络层错误
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("transporter update %s failed: %s", e.Stage, e.Message)
}

// ErrorReason 实现 errorutil.Reasoner
func (e *UpdateError) ErrorReason() string {
	if e.Transport {
		return "update-request-error"
	}
	return "update-rejected"
}

// Config 更新客户端配置
type Config struct {
	Endpoint     string
	AccountGSTIN string
	// DocumentBaseURL 相对文档链接的前缀
	DocumentBaseURL string
}

// request 上游请求体
type request struct {
	UserGSTIN       string `json:"user_gstin"`
	EwayBillNumber  string `json:"eway_bill_number"`
	TransporterID   string `json:"transporter_id"`
	TransporterName string `json:"transporter_name"`
}

// response 上游响应体
type response struct {
	Results *struct {
		Message json.RawMessage `json:"message"`
		Status  string          `json:"status"`
		Code    json.RawMessage `json:"code"`
	} `json:"results"`
}

// document 成功时 message 中的内容
type document struct {
	UpdatedDate     string `json:"transUpdateDate"`
	URL             string `json:"url"`
	EwaybillPDFLink string `json:"ewaybill_pdf"`
}

// Client 承运人更新客户端
// 上游需要同一请求调用两次：第一次执行更新，第二次才返回生成的文档链接
type Client struct {
	cfg    Config
	http   *http.Client
	logger logger.Logger
	now    func() time.Time
}

// NewClient 创建更新客户端，httpClient 为 nil 时使用默认客户端
func NewClient(cfg Config, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: log,
		now:    time.Now,
	}
}

// PerformUpdate 执行承运人更新
// 第一次调用失败直接返回错误，不会发起第二次调用；第二次调用失败或没有链接时仍视为成功
func (c *Client) PerformUpdate(ctx context.Context, ewbID string, transporterID int64, transporterName string) (*Outcome, *UpdateError) {
	body, err := json.Marshal(request{
		UserGSTIN:       c.cfg.AccountGSTIN,
		EwayBillNumber:  ewbno.Clean(ewbID),
		TransporterID:   strconv.FormatInt(transporterID, 10),
		TransporterName: transporterName,
	})
	if err != nil {
		return nil, &UpdateError{Stage: StageApply, Message: "marshal request: " + err.Error()}
	}

	// 1. 执行更新
	first, uerr := c.call(ctx, StageApply, body)
	if uerr != nil {
		c.logger.Warnf(ctx, "[UpdateClient] apply failed: ewb=%s, err=%s", ewbID, uerr.Message)
		return nil, uerr
	}

	outcome := &Outcome{
		EwbID:           ewbno.Clean(ewbID),
		Success:         true,
		TransporterID:   transporterID,
		TransporterName: transporterName,
		UpdatedDate:     first.UpdatedDate,
		Timestamp:       c.now(),
	}
	if link := first.link(); link != "" {
		outcome.DocumentURL = c.absolute(link)
	}

	// 2. 再次调用获取文档链接
	second, derr := c.call(ctx, StageDocument, body)
	if derr != nil {
		c.logger.Warnf(ctx, "[UpdateClient] document fetch failed, keeping apply result: ewb=%s, err=%s", ewbID, derr.Message)
		return outcome, nil
	}
	if second.UpdatedDate != "" {
		outcome.UpdatedDate = second.UpdatedDate
	}
	if link := second.link(); link != "" {
		outcome.DocumentURL = c.absolute(link)
	}

	return outcome, nil
}

func (d *document) link() string {
	if d == nil {
		return ""
	}
	if s := strings.TrimSpace(d.URL); s != "" {
		return s
	}
	return strings.TrimSpace(d.EwaybillPDFLink)
}

// call 单次 POST
func (c *Client) call(ctx context.Context, stage Stage, body []byte) (*document, *UpdateError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &UpdateError{Stage: stage, Message: "build request: " + err.Error(), Transport: true}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpdateError{Stage: stage, Message: err.Error(), Transport: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpdateError{Stage: stage, StatusCode: resp.StatusCode, Message: "read response: " + err.Error(), Transport: true}
	}

	return parseResponse(stage, resp.StatusCode, raw)
}

// parseResponse 解析上游响应并识别结构化错误
func parseResponse(stage Stage, status int, raw []byte) (*document, *UpdateError) {
	var r response
	if err := json.Unmarshal(raw, &r); err != nil || r.Results == nil {
		msg := "unexpected update response"
		if status < 200 || status > 299 {
			msg = "update service returned HTTP " + strconv.Itoa(status)
		}
		return nil, &UpdateError{Stage: stage, StatusCode: status, Message: msg}
	}

	code := parseCode(r.Results.Code)
	if status < 200 || status > 299 || code >= 400 || !strings.EqualFold(r.Results.Status, "Success") {
		return nil, &UpdateError{Stage: stage, StatusCode: status, Message: errorText(r.Results.Message, r.Results.Status)}
	}

	var doc document
	if len(r.Results.Message) > 0 && r.Results.Message[0] == '{' {
		if err := json.Unmarshal(r.Results.Message, &doc); err != nil {
			return &document{}, nil
		}
	}
	return &doc, nil
}

func parseCode(raw json.RawMessage) int {
	s := strings.Trim(string(raw), `"`)
	n, _ := strconv.Atoi(s)
	return n
}

func errorText(raw json.RawMessage, status string) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, k := range []string{"error", "message", "errorMessage"} {
			if v, ok := obj[k].(string); ok && v != "" {
				return v
			}
		}
	}
	if status != "" {
		return "update rejected with status " + status
	}
	return "update rejected"
}

// absolute 相对链接补全为绝对地址
func (c *Client) absolute(link string) string {
	u, err := url.Parse(link)
	if err == nil && u.IsAbs() {
		return link
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}

	base := c.cfg.DocumentBaseURL
	if base == "" {
		if eu, err := url.Parse(c.cfg.Endpoint); err == nil && eu.Host != "" {
			base = eu.Scheme + "://" + eu.Host
		}
	}
	if base == "" {
		return link
	}

	bu, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil || u == nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(link, "/")
	}
	return bu.ResolveReference(u).String()
}
