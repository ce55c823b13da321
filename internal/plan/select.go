package plan

import (
	"sort"

	"dpconv/internal/lang"
	"dpconv/internal/probe"
)

// SelectedStream is an audio stream chosen for the output, identified by
// its position among the source's audio streams.
type SelectedStream struct {
	Index    int
	Language string
}

// SelectAudio filters and orders the audio streams for output mapping.
//
// When keep is non-empty only streams whose language is in keep survive,
// except that "unknown" streams are always retained: dropping a track
// whose language simply was not tagged would silently lose audio the
// user may need. When sortOrder is non-empty the retained streams are
// stable-sorted by their language's position in sortOrder; languages not
// listed sort after all listed ones, keeping their original relative
// order.
func SelectAudio(streams []probe.AudioStream, keep, sortOrder []string) []SelectedStream {
	if len(streams) == 0 {
		return nil
	}

	keepSet := make(map[string]bool, len(keep)+1)
	for _, k := range keep {
		keepSet[k] = true
	}
	keepSet[lang.Unknown] = true

	selected := make([]SelectedStream, 0, len(streams))
	for _, s := range streams {
		if len(keep) > 0 && !keepSet[s.Language] {
			continue
		}
		selected = append(selected, SelectedStream{Index: s.Index, Language: s.Language})
	}

	if len(sortOrder) > 0 {
		rank := func(language string) int {
			for i, l := range sortOrder {
				if l == language {
					return i
				}
			}
			return len(sortOrder)
		}
		sort.SliceStable(selected, func(i, j int) bool {
			return rank(selected[i].Language) < rank(selected[j].Language)
		})
	}

	return selected
}
