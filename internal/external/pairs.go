package external

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Search order matters: the first extension present wins.
var (
	pairAudioExts = []string{".m4a"}
	pairVideoExts = []string{".webm", ".mp4"}
)

// Pair is one audio and one video file sharing a stem.
type Pair struct {
	Stem  string
	Video string
	Audio string
}

// UnpairedError lists stems that have only one half of a pair.
type UnpairedError struct {
	Stems []string
}

func (e *UnpairedError) Error() string {
	return fmt.Sprintf("no matching video and audio for: %s", strings.Join(e.Stems, ", "))
}

// PairStems matches names by stem. Stems with neither an audio nor a video
// extension are ignored; stems with only one of them fail the whole call.
func PairStems(names []string) ([]Pair, error) {
	present := make(map[string]bool, len(names))
	stems := make(map[string]bool)
	for _, name := range names {
		present[name] = true
		ext := filepath.Ext(name)
		if hasExt(pairAudioExts, ext) || hasExt(pairVideoExts, ext) {
			stems[strings.TrimSuffix(name, ext)] = true
		}
	}

	sorted := make([]string, 0, len(stems))
	for stem := range stems {
		sorted = append(sorted, stem)
	}
	sort.Strings(sorted)

	var pairs []Pair
	var unpaired []string
	for _, stem := range sorted {
		pair := Pair{Stem: stem}
		for _, ext := range pairAudioExts {
			if present[stem+ext] {
				pair.Audio = stem + ext
				break
			}
		}
		for _, ext := range pairVideoExts {
			if present[stem+ext] {
				pair.Video = stem + ext
				break
			}
		}
		if pair.Audio == "" || pair.Video == "" {
			unpaired = append(unpaired, stem)
			continue
		}
		pairs = append(pairs, pair)
	}

	if len(unpaired) > 0 {
		return nil, &UnpairedError{Stems: unpaired}
	}
	return pairs, nil
}

func hasExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
