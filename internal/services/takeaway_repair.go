package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// RepairPass 标识解析成功时所经过的修复步骤。
type RepairPass string

// 修复步骤
const (
	PassFenceAndDelimiter RepairPass = "fence_and_delimiter"
	PassControlCharacter  RepairPass = "control_character"
)

// ErrUnrecoverableResponse 表示两轮修复后仍无法解析为 JSON 对象。
var ErrUnrecoverableResponse = errors.New("takeaway response: unrecoverable json")

var (
	codeFencePattern      = regexp.MustCompile("```json\\s*|\\s*```")
	objectCommaPattern    = regexp.MustCompile(`}\s*,\s*{`)
	adjacentObjectPattern = regexp.MustCompile(`}\s*{`)
	objectArrayEndPattern = regexp.MustCompile(`}\s*]`)
	arrayObjectEndPattern = regexp.MustCompile(`]\s*}`)
	controlCharPattern    = regexp.MustCompile(`[\x00-\x1F\x7F-\x9F]`)
	whitespaceRunPattern  = regexp.MustCompile(`\s+`)
	trailingCommaPattern  = regexp.MustCompile(`,\s*([}\]])`)
)

// fenceAndDelimiterPass 去除 markdown 代码围栏并规整对象/数组之间的分隔符。
func fenceAndDelimiterPass(raw string) string {
	s := codeFencePattern.ReplaceAllString(raw, "")
	s = objectCommaPattern.ReplaceAllString(s, "}, {")
	s = adjacentObjectPattern.ReplaceAllString(s, "}, {")
	s = objectArrayEndPattern.ReplaceAllString(s, "}]")
	s = arrayObjectEndPattern.ReplaceAllString(s, "]}")
	return strings.TrimSpace(s)
}

// controlCharacterPass 在第一轮基础上把换行折叠为空格、去除控制字符并删除尾随逗号。
func controlCharacterPass(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
	s = controlCharPattern.ReplaceAllString(s, "")
	s = whitespaceRunPattern.ReplaceAllString(s, " ")
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// RepairAndDecode 依次尝试两轮修复，返回顶层对象的字段与成功的修复步骤。
func RepairAndDecode(raw string) (map[string]json.RawMessage, RepairPass, error) {
	first := fenceAndDelimiterPass(raw)
	fields, err := decodeObject(first)
	if err == nil {
		return fields, PassFenceAndDelimiter, nil
	}
	firstErr := err

	second := controlCharacterPass(first)
	fields, err = decodeObject(second)
	if err == nil {
		return fields, PassControlCharacter, nil
	}
	return nil, "", fmt.Errorf("%w: %v; %v", ErrUnrecoverableResponse, firstErr, err)
}

func decodeObject(s string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("top-level value is not an object")
	}
	return fields, nil
}
