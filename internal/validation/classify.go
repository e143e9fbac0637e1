package validation

import (
	"encoding/json"
	"strconv"
	"strings"
)

// 校验服务响应特征（与上游保持一致，不可改动）
const (
	// CodeNoContent 上游查无此 EWB 时的 results.code
	CodeNoContent = 204
	// NicCodeNoRecord NIC 侧查无记录的二级状态码
	NicCodeNoRecord = "325"
	// MessageNoRecord 查无记录时 message 中包含的片段
	MessageNoRecord = "Could not retrieve data"
	// StatusSuccess 成功状态
	StatusSuccess = "Success"
)

// envelope 上游通用响应结构
type envelope struct {
	Results *results `json:"results"`
}

type results struct {
	Message json.RawMessage `json:"message"`
	Status  string          `json:"status"`
	Code    flexInt         `json:"code"`
	NicCode flexString      `json:"nic_code"`
}

// flexInt 兼容数字和数字字符串
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// flexString 兼容字符串和数字
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexString(s)
	return nil
}

// classification 分类结果
type classification struct {
	reason  Reason // 空表示成功
	message string
}

// classify 按响应内容分类
// httpStatus 为 0 时只看响应体（用于缓存内容检查）
func classify(httpStatus int, body []byte) classification {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Results == nil {
		if httpStatus != 0 && (httpStatus < 200 || httpStatus > 299) {
			return classification{reason: ReasonRequestError, message: "validation service returned HTTP " + strconv.Itoa(httpStatus)}
		}
		return classification{reason: ReasonRequestError, message: "unexpected validation response"}
	}

	r := env.Results
	text := messageText(r.Message)

	if int(r.Code) == CodeNoContent ||
		string(r.NicCode) == NicCodeNoRecord ||
		strings.Contains(text, MessageNoRecord) ||
		strings.Contains(string(r.Message), MessageNoRecord) {
		if text == "" {
			text = "no data found for this e-way bill"
		}
		return classification{reason: ReasonInvalid, message: text}
	}

	if httpStatus != 0 && (httpStatus < 200 || httpStatus > 299) {
		return classification{reason: ReasonRequestError, message: orDefault(text, "validation service returned HTTP "+strconv.Itoa(httpStatus))}
	}
	if int(r.Code) >= 400 || !strings.EqualFold(r.Status, StatusSuccess) {
		return classification{reason: ReasonRequestError, message: orDefault(text, "validation failed with status "+r.Status)}
	}

	return classification{}
}

// IsErrorPayload 判断 payload 是否为错误状态（缓存读取时使用）
func IsErrorPayload(payload json.RawMessage) bool {
	return classify(0, payload).reason != ""
}

// messageText message 字段可能是字符串也可能是对象
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
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
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
