package runner

import (
	"regexp"
	"strconv"
)

// Progress is one normalized update extracted from the download tool's
// free-form output.
type Progress struct {
	Percent int
	Rate    string
	ETA     string
}

// wget dot-progress lines interleave counters, dots and three trailing
// tokens, e.g.
//
//	151550K .......... .......... 45% 1.21M 3m12s
//
// The percentage, rate and ETA are the only tokens we care about.
var progressRe = regexp.MustCompile(`(\d{1,3})%\s+([\d.,]+[KMGT]?)\s+([\dhmsd]+)`)

// ParseProgressLine extracts the percentage, transfer rate and estimated
// time remaining from one line of tool output. The second return is false
// for lines that carry no progress information.
func ParseProgressLine(line string) (Progress, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	percent, err := strconv.Atoi(m[1])
	if err != nil || percent > 100 {
		return Progress{}, false
	}

	return Progress{
		Percent: percent,
		Rate:    m[2],
		ETA:     m[3],
	}, true
}
