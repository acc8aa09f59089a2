package services

import (
	"math"
	"sort"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
)

// DwellSeconds 是新分钟开始后延迟展示该分钟要点的秒数。
const DwellSeconds = 10

// ActiveTakeaways 返回 currentTime 时刻应展示的要点分组。纯函数，不修改入参。
//
// 规则：取分钟数不超过当前分钟的最大分组；若该分组恰为当前分钟且进入当前分钟不足 10 秒，
// 则继续展示上一个分组；没有上一个分组时返回空。
func ActiveTakeaways(currentTime float64, takeaways []po.Takeaway) []po.Takeaway {
	if len(takeaways) == 0 || math.IsNaN(currentTime) || math.IsInf(currentTime, 0) || currentTime < 0 {
		return nil
	}

	sorted := make([]po.Takeaway, len(takeaways))
	copy(sorted, takeaways)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Minute < sorted[j].Minute })

	currentMinute := int(math.Floor(currentTime / 60))
	secondsIntoMinute := math.Mod(currentTime, 60)

	candidate, ok := greatestMinuteAtMost(sorted, currentMinute)
	if !ok {
		return nil
	}
	if candidate == currentMinute && secondsIntoMinute < DwellSeconds {
		candidate, ok = greatestMinuteAtMost(sorted, currentMinute-1)
		if !ok {
			return nil
		}
	}
	return groupForMinute(sorted, candidate)
}

func greatestMinuteAtMost(sorted []po.Takeaway, limit int) (int, bool) {
	// sorted 升序；找第一个大于 limit 的位置，其前一项即为答案。
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i].Minute > limit })
	if idx == 0 {
		return 0, false
	}
	return sorted[idx-1].Minute, true
}

func groupForMinute(sorted []po.Takeaway, minute int) []po.Takeaway {
	var group []po.Takeaway
	for _, t := range sorted {
		if t.Minute == minute {
			group = append(group, t)
		}
	}
	return group
}
