package po

// CaptionKind 标识字幕轨来源。
type CaptionKind string

// 字幕轨类型
const (
	CaptionKindASR      CaptionKind = "asr"      // 自动语音识别
	CaptionKindStandard CaptionKind = "standard" // 人工上传
)

// CaptionLine 是一条带时间戳的字幕，Text 已完成实体解码并去除首尾空白。
type CaptionLine struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// CaptionSet 汇总一个视频的字幕；Available=false 是合法的终态，表示视频无字幕。
type CaptionSet struct {
	Available bool          `json:"available"`
	Language  string        `json:"language,omitempty"`
	Kind      CaptionKind   `json:"kind,omitempty"`
	Count     int           `json:"count"`
	Items     []CaptionLine `json:"items,omitempty"`
}

// NewCaptionSet 根据解析结果构造可用字幕集合。
func NewCaptionSet(language string, kind CaptionKind, items []CaptionLine) CaptionSet {
	return CaptionSet{
		Available: true,
		Language:  language,
		Kind:      kind,
		Count:     len(items),
		Items:     items,
	}
}

// UnavailableCaptions 返回表示“无字幕”的集合。
func UnavailableCaptions() CaptionSet {
	return CaptionSet{Available: false}
}

// CaptionKindFromTrack 将字幕轨 kind 字段映射为 CaptionKind。
func CaptionKindFromTrack(kind string) CaptionKind {
	if kind == string(CaptionKindASR) {
		return CaptionKindASR
	}
	return CaptionKindStandard
}
