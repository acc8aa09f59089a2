package vo

import (
	"fmt"
	"sort"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
)

// PlaybackCursor 是会话内的播放进度快照，不做持久化。
type PlaybackCursor struct {
	CurrentTime             float64 `json:"currentTime"`
	TabOpenTime             float64 `json:"tabOpenTime"`
	AccumulatedPlaybackTime float64 `json:"accumulatedPlaybackTime"`
}

// ActiveTakeaway 是当前应展示的单条要点。
// Index 为其在按分钟排序的完整集合中的位置（从 1 开始）。
type ActiveTakeaway struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	Minute    int    `json:"minute"`
	KeyPoint  string `json:"keyPoint"`
}

// ActiveView 是一次播放同步的展示结果。
type ActiveView struct {
	CurrentTime float64          `json:"currentTime"`
	Total       int              `json:"total"`
	Items       []ActiveTakeaway `json:"items"`
}

// FormatTakeawayTimestamp 把分钟渲染为 "m:00" 或超过一小时时的 "h:mm"。
func FormatTakeawayTimestamp(minute int) string {
	if minute < 0 {
		minute = 0
	}
	hours := minute / 60
	mins := minute % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d", hours, mins)
	}
	return fmt.Sprintf("%d:00", mins)
}

// NewActiveView 将活跃分组映射为带序号的展示数据。
// all 为完整要点集合，active 为同步器返回的当前分组。
func NewActiveView(currentTime float64, all, active []po.Takeaway) ActiveView {
	sorted := make([]po.Takeaway, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Minute < sorted[j].Minute })

	view := ActiveView{CurrentTime: currentTime, Total: len(sorted), Items: make([]ActiveTakeaway, 0, len(active))}
	for _, item := range active {
		index := 0
		for i, candidate := range sorted {
			if candidate.Minute == item.Minute && candidate.KeyPoint == item.KeyPoint {
				index = i + 1
				break
			}
		}
		view.Items = append(view.Items, ActiveTakeaway{
			Index:     index,
			Timestamp: FormatTakeawayTimestamp(item.Minute),
			Minute:    item.Minute,
			KeyPoint:  item.KeyPoint,
		})
	}
	return view
}
