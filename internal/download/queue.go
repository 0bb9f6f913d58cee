package download

import (
	"sort"

	"github.com/reelcache/reelcache/internal/catalog"
)

// SortForDownload orders download candidates with a two-phase stable
// policy:
//
//  1. Until the ahead target is met (targetVideosAhead count or
//     targetMinutesAhead total known length), smallest content length
//     first, ties by higher score, so something watchable lands on
//     disk fast.
//  2. Past the target, higher score first, ties by smaller content
//     length.
//
// The partition walks candidates in their incoming order and both
// groups are sorted stably, so the overall result is deterministic.
func SortForDownload(videos []catalog.Video, targetVideosAhead int, targetMinutesAhead float64) []catalog.Video {
	needed, leftover := partitionForTarget(videos, targetVideosAhead, targetMinutesAhead)

	sort.SliceStable(needed, func(i, j int) bool {
		a, b := contentLength(&needed[i]), contentLength(&needed[j])
		if a != b {
			return a < b
		}
		return needed[i].Score > needed[j].Score
	})

	sort.SliceStable(leftover, func(i, j int) bool {
		if leftover[i].Score != leftover[j].Score {
			return leftover[i].Score > leftover[j].Score
		}
		return contentLength(&leftover[i]) < contentLength(&leftover[j])
	})

	return append(needed, leftover...)
}

// partitionForTarget splits candidates into the group that fills the
// ahead target and the rest, preserving incoming order in both.
func partitionForTarget(videos []catalog.Video, targetCount int, targetMinutes float64) ([]catalog.Video, []catalog.Video) {
	var needed, leftover []catalog.Video
	count := 0
	minutes := 0.0

	for _, v := range videos {
		if count < targetCount || minutes < targetMinutes {
			needed = append(needed, v)
			count++
			if v.LengthSeconds > 0 {
				minutes += v.LengthSeconds / 60
			}
			continue
		}
		leftover = append(leftover, v)
	}
	return needed, leftover
}

// contentLength treats unknown sizes as effectively infinite so known
// small files win in phase one.
func contentLength(v *catalog.Video) int64 {
	if v.ContentLength <= 0 {
		return int64(^uint64(0) >> 1)
	}
	return v.ContentLength
}
