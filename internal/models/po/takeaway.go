package po

import (
	"fmt"
	"time"
)

// Takeaway 是锚定到某一分钟的要点。
// 两个评分字段为可选项，存在时取值范围为 1..100。
type Takeaway struct {
	Minute            int    `json:"minute"`
	KeyPoint          string `json:"key_point"`
	SignificanceScore *int   `json:"significanceScore,omitempty"`
	InterestScore     *int   `json:"interestScore,omitempty"`
}

// QuizQuestion 是单选题，Options 固定四项。
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}

// QuizSet 是随要点一起生成的可选测验。
type QuizSet struct {
	Description string         `json:"description,omitempty"`
	Questions   []QuizQuestion `json:"questions"`
}

// TakeawaySet 是一次生成的完整结果，也是缓存条目的载荷。
// ID 在同一缓存条目的多次读取间保持不变，重新生成后必然不同。
type TakeawaySet struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Takeaways       []Takeaway `json:"takeaways"`
	Quiz            *QuizSet   `json:"quiz,omitempty"`
	CachedAt        *time.Time `json:"cachedAt,omitempty"`
	PromptVersion   int        `json:"promptVersion,omitempty"`
}

// Clone 返回深拷贝，避免调用方修改缓存中的切片。
func (s *TakeawaySet) Clone() *TakeawaySet {
	if s == nil {
		return nil
	}
	out := *s
	out.Takeaways = make([]Takeaway, len(s.Takeaways))
	copy(out.Takeaways, s.Takeaways)
	if s.Quiz != nil {
		quiz := *s.Quiz
		quiz.Questions = make([]QuizQuestion, len(s.Quiz.Questions))
		for i, q := range s.Quiz.Questions {
			q.Options = append([]string(nil), q.Options...)
			quiz.Questions[i] = q
		}
		out.Quiz = &quiz
	}
	if s.CachedAt != nil {
		ts := *s.CachedAt
		out.CachedAt = &ts
	}
	return &out
}

// CacheKey 唯一标识一个缓存条目。模型或提示词版本变化即视为不同条目。
type CacheKey struct {
	VideoID       string
	ModelID       string
	PromptVersion int
}

// String 渲染持久化使用的键名。
func (k CacheKey) String() string {
	return fmt.Sprintf("takeaways_%s_%s_v%d", k.VideoID, k.ModelID, k.PromptVersion)
}

// CacheEntry 是一次缓存写入的完整记录。
type CacheEntry struct {
	Key      CacheKey
	Set      *TakeawaySet
	StoredAt time.Time
}
