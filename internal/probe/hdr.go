package probe

import "strings"

// HDR detection is a best-effort heuristic: it matches known HDR transfer
// characteristics and primaries, then falls back to substring checks on
// side-data type names. Some HDR10+/Dolby Vision side-data types may not
// match any of these, so false negatives are possible.

var hdrTransfers = map[string]bool{
	"smpte2084":    true,
	"arib-std-b67": true,
	"smpte428":     true,
	"iec61966-2-1": true,
}

var hdrPrimaries = map[string]bool{
	"bt2020":   true,
	"smpte431": true,
	"smpte432": true,
}

func isHDR(s *ffprobeStream) bool {
	if hdrTransfers[strings.ToLower(s.ColorTransfer)] {
		return true
	}
	if hdrPrimaries[strings.ToLower(s.ColorPrimaries)] {
		return true
	}
	for _, sd := range s.SideDataList {
		t := strings.ToLower(sd.Type)
		if strings.Contains(t, "hdr") || strings.Contains(t, "mastering") || strings.Contains(t, "content_light") {
			return true
		}
	}
	return false
}
