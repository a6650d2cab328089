package textmatch

import "strings"

// Area is a named region with the place-name fragments that identify it in an address
type Area struct {
	Name    string
	Aliases []string
}

// MatchArea returns the area whose name or alias occurs in the address. When
// several match, the longest fragment wins so "北本町" beats "本町".
func MatchArea(address string, areas []Area) (string, bool) {
	addr := Compact(address)
	if addr == "" {
		return "", false
	}

	best := ""
	bestLen := 0
	for _, area := range areas {
		candidates := append([]string{area.Name}, area.Aliases...)
		for _, c := range candidates {
			frag := Compact(c)
			if frag == "" || len(frag) <= bestLen {
				continue
			}
			if strings.Contains(addr, frag) {
				best = area.Name
				bestLen = len(frag)
			}
		}
	}
	return best, best != ""
}
