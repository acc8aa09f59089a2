package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
)

// 结构校验错误。
var (
	ErrMissingTakeaways = errors.New("takeaway response: takeaways missing")
	ErrInvalidTakeaway  = errors.New("takeaway response: invalid takeaway")
	ErrInvalidQuiz      = errors.New("takeaway response: invalid quiz")
)

const (
	quizOptionCount = 4
	minScore        = 1
	maxScore        = 100
)

// DecodeTakeawaySet 对修复后的顶层字段做结构校验并构造 TakeawaySet。
func DecodeTakeawaySet(fields map[string]json.RawMessage) (*po.TakeawaySet, error) {
	rawItems, ok := fields["takeaways"]
	if !ok || isJSONNull(rawItems) {
		return nil, ErrMissingTakeaways
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, fmt.Errorf("%w: takeaways is not an array of objects", ErrInvalidTakeaway)
	}

	set := &po.TakeawaySet{Takeaways: make([]po.Takeaway, 0, len(items))}
	for i, item := range items {
		takeaway, err := decodeTakeaway(item)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidTakeaway, i, err)
		}
		set.Takeaways = append(set.Takeaways, takeaway)
	}

	if raw, ok := fields["id"]; ok {
		_ = json.Unmarshal(raw, &set.ID)
	}
	if raw, ok := fields["title"]; ok {
		_ = json.Unmarshal(raw, &set.Title)
	}
	if raw, ok := fields["duration_minutes"]; ok {
		if n, err := integerFrom(raw); err == nil && n >= 0 {
			set.DurationMinutes = n
		}
	}
	if raw, ok := fields["quiz"]; ok && !isJSONNull(raw) {
		quiz, err := decodeQuiz(raw)
		if err != nil {
			return nil, err
		}
		set.Quiz = quiz
	}
	return set, nil
}

func decodeTakeaway(item map[string]json.RawMessage) (po.Takeaway, error) {
	var out po.Takeaway
	rawMinute, ok := item["minute"]
	if !ok {
		return out, errors.New("minute missing")
	}
	minute, err := integerFrom(rawMinute)
	if err != nil {
		return out, fmt.Errorf("minute: %w", err)
	}
	if minute < 0 {
		return out, fmt.Errorf("minute %d is negative", minute)
	}
	out.Minute = minute

	var keyPoint string
	if err := json.Unmarshal(item["key_point"], &keyPoint); err != nil {
		return out, errors.New("key_point must be a string")
	}
	// 原文保留，去重按精确文本比较。
	if strings.TrimSpace(keyPoint) == "" {
		return out, errors.New("key_point empty")
	}
	out.KeyPoint = keyPoint

	if out.SignificanceScore, err = optionalScore(item, "significanceScore"); err != nil {
		return out, err
	}
	if out.InterestScore, err = optionalScore(item, "interestScore"); err != nil {
		return out, err
	}
	return out, nil
}

func optionalScore(item map[string]json.RawMessage, key string) (*int, error) {
	raw, ok := item[key]
	if !ok || isJSONNull(raw) {
		return nil, nil
	}
	score, err := integerFrom(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if score < minScore || score > maxScore {
		return nil, fmt.Errorf("%s %d out of range", key, score)
	}
	return &score, nil
}

func decodeQuiz(raw json.RawMessage) (*po.QuizSet, error) {
	var quiz po.QuizSet
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	for i, q := range quiz.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return nil, fmt.Errorf("%w: question %d empty", ErrInvalidQuiz, i)
		}
		if len(q.Options) != quizOptionCount {
			return nil, fmt.Errorf("%w: question %d has %d options", ErrInvalidQuiz, i, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= quizOptionCount {
			return nil, fmt.Errorf("%w: question %d correctIndex %d", ErrInvalidQuiz, i, q.CorrectIndex)
		}
	}
	return &quiz, nil
}

// integerFrom 接受 JSON 数字中的整数值（包括 3.0 这类写法）。
func integerFrom(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	f, err := num.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %s", num)
	}
	return int(f), nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// DeduplicateTakeaways 按 key_point 精确去重，保留首次出现并保持原有顺序。
func DeduplicateTakeaways(items []po.Takeaway) []po.Takeaway {
	seen := make(map[string]struct{}, len(items))
	out := make([]po.Takeaway, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.KeyPoint]; ok {
			continue
		}
		seen[item.KeyPoint] = struct{}{}
		out = append(out, item)
	}
	return out
}
